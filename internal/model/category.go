package model

// Category is the closed set of goal categories. The value is the stored key.
type Category string

const (
	CategoryEducation     Category = "EDUCATION"
	CategoryMental        Category = "MENTAL WELLBEING"
	CategoryPhysical      Category = "PHYSICAL WELLBEING"
	CategoryNutrition     Category = "NUTRITION"
	CategoryRelationships Category = "FAMILY & RELATIONSHIPS"
	CategoryCareer        Category = "CAREER"
	CategoryFinances      Category = "FINANCES"
	CategorySpirituality  Category = "SPIRITUALITY"
	CategoryCreativity    Category = "CREATIVITY"
	CategoryHome          Category = "HOME"
)

// Categories returns every category in display order.
func Categories() []Category {
	return []Category{
		CategoryEducation,
		CategoryMental,
		CategoryPhysical,
		CategoryNutrition,
		CategoryRelationships,
		CategoryCareer,
		CategoryFinances,
		CategorySpirituality,
		CategoryCreativity,
		CategoryHome,
	}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// CategoryFromKey maps a stored key to a category. Unknown and empty keys
// fall back to CategoryEducation.
func CategoryFromKey(key string) Category {
	c := Category(key)
	if c.Valid() {
		return c
	}
	return CategoryEducation
}
