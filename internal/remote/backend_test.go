package remote

import (
	"bytes"
	"context"
	"database/sql"
	"io"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testBackendContract checks the behavior every Backend must share.
func testBackendContract(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	docs, err := b.List(ctx, "u1", "goals")
	require.NoError(t, err)
	assert.Empty(t, docs)

	require.NoError(t, b.Put(ctx, "u1", "goals", "g2", []byte(`{"id":"g2"}`)))
	require.NoError(t, b.Put(ctx, "u1", "goals", "g1", []byte(`{"id":"g1"}`)))
	require.NoError(t, b.Put(ctx, "u1", "places", "p1", []byte(`{"id":"p1"}`)))
	require.NoError(t, b.Put(ctx, "u2", "goals", "g9", []byte(`{"id":"g9"}`)))

	// Replace.
	require.NoError(t, b.Put(ctx, "u1", "goals", "g1", []byte(`{"id":"g1","v":2}`)))

	docs, err = b.List(ctx, "u1", "goals")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	slices.SortFunc(docs, func(a, b Document) int { return strings.Compare(a.ID, b.ID) })
	assert.Equal(t, "g1", docs[0].ID)
	assert.JSONEq(t, `{"id":"g1","v":2}`, string(docs[0].Data))
	assert.Equal(t, "g2", docs[1].ID)

	require.NoError(t, b.Delete(ctx, "u1", "goals", "g2"))
	require.NoError(t, b.Delete(ctx, "u1", "goals", "missing"))

	docs, err = b.List(ctx, "u1", "goals")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "g1", docs[0].ID)

	other, err := b.List(ctx, "u2", "goals")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "g9", other[0].ID)
}

func TestMemory_Contract(t *testing.T) {
	testBackendContract(t, NewMemory())
}

func TestLibSQL_Contract(t *testing.T) {
	conn, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	b, err := NewLibSQLFromDB(context.Background(), conn)
	require.NoError(t, err)

	testBackendContract(t, b)
}

func TestS3_Contract(t *testing.T) {
	fake := newFakeS3()
	testBackendContract(t, NewS3FromClient(fake, "bucket", "app/"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	_, ok := fake.objects["app/users/u1/goals/g1.json"]
	assert.True(t, ok, "object key layout")
}

func TestS3_ListPaginates(t *testing.T) {
	fake := newFakeS3()
	b := NewS3FromClient(fake, "bucket", "")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Put(ctx, "u1", "journal_entries", "j"+strconv.Itoa(i), []byte("{}")))
	}
	// Objects outside the collection layout are ignored.
	fake.objects["users/u1/journal_entries/nested/x.json"] = []byte("{}")
	fake.objects["users/u1/journal_entries/readme.txt"] = []byte("")

	docs, err := b.List(ctx, "u1", "journal_entries")
	require.NoError(t, err)
	assert.Len(t, docs, 5)
	assert.Greater(t, fake.listCalls, 1)
}

// fakeS3 is an in-memory S3API returning two keys per list page.
type fakeS3 struct {
	mu        sync.Mutex
	objects   map[string][]byte
	listCalls int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, aws.ToString(in.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	start := 0
	if tok := aws.ToString(in.ContinuationToken); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	end := min(start+2, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}
