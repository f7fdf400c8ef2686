package cloudwriter

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket, key string
	body        []byte
	err         error
}

func (f *fakeS3) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(params.Bucket)
	f.key = aws.ToString(params.Key)
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func TestS3Writer_UploadsOnClose(t *testing.T) {
	client := &fakeS3{}
	factory := NewS3WriterFactoryFromClient(client)

	w, err := factory.NewWriter(context.Background(), "ledger", "earnings/data.parquet")
	require.NoError(t, err)
	_, err = w.Write([]byte("PAR1"))
	require.NoError(t, err)
	assert.Nil(t, client.body, "nothing uploaded before close")

	require.NoError(t, w.Close())
	assert.Equal(t, "ledger", client.bucket)
	assert.Equal(t, "earnings/data.parquet", client.key)
	assert.Equal(t, []byte("PAR1"), client.body)
}

func TestS3Writer_Errors(t *testing.T) {
	boom := errors.New("access denied")
	factory := NewS3WriterFactoryFromClient(&fakeS3{err: boom})

	_, err := factory.NewWriter(context.Background(), "", "x")
	assert.Error(t, err)

	w, err := factory.NewWriter(context.Background(), "ledger", "x")
	require.NoError(t, err)
	assert.ErrorIs(t, w.Close(), boom)
}

func TestParquetFile_TracksOffset(t *testing.T) {
	client := &fakeS3{}
	w, _ := NewS3WriterFactoryFromClient(client).NewWriter(context.Background(), "b", "k")
	f := NewParquetFile(w)

	_, err := f.Write([]byte("abc"))
	require.NoError(t, err)
	pos, err := f.Seek(0, io.SeekCurrent)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pos)

	_, err = f.Seek(0, io.SeekEnd)
	assert.Error(t, err)
	_, err = f.Read(make([]byte, 1))
	assert.Error(t, err)
}
