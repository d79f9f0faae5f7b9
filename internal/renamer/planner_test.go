package renamer

import (
	"context"
	"testing"
	"time"

	"github.com/megacustom/core/internal/cloudclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreviewFlagsDuplicateWithinBatch(t *testing.T) {
	client := cloudclient.NewFake()
	ctx := context.Background()

	a, err := client.PutFile("/Docs/IMG_0001.jpg", []byte("a"), time.Now())
	require.NoError(t, err)
	b, err := client.PutFile("/Docs/IMG_0002.jpg", []byte("b"), time.Now())
	require.NoError(t, err)

	pattern := Pattern{Search: `IMG_\d+`, Replace: "Photo", PreserveExtension: true}

	planned, err := Preview(ctx, client, []cloudclient.Node{a, b}, pattern)
	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, DuplicateInBatch, planned[0].Conflict)
	assert.Equal(t, DuplicateInBatch, planned[1].Conflict)
}

func TestPreviewFlagsExistingSibling(t *testing.T) {
	client := cloudclient.NewFake()
	ctx := context.Background()

	_, err := client.PutFile("/Docs/Photo.jpg", []byte("existing"), time.Now())
	require.NoError(t, err)

	src, err := client.PutFile("/Docs/IMG_0001.jpg", []byte("a"), time.Now())
	require.NoError(t, err)

	pattern := Pattern{Search: `IMG_\d+`, Replace: "Photo", PreserveExtension: true}

	planned, err := Preview(ctx, client, []cloudclient.Node{src}, pattern)
	require.NoError(t, err)
	require.Len(t, planned, 1)
	assert.Equal(t, ExistingSibling, planned[0].Conflict)
}

func TestPreviewNoConflictWhenNamesDistinct(t *testing.T) {
	client := cloudclient.NewFake()
	ctx := context.Background()

	a, err := client.PutFile("/Docs/report-1.txt", []byte("a"), time.Now())
	require.NoError(t, err)
	b, err := client.PutFile("/Docs/report-2.txt", []byte("b"), time.Now())
	require.NoError(t, err)

	pattern := Pattern{Search: "report", Replace: "summary", PreserveExtension: true}

	planned, err := Preview(ctx, client, []cloudclient.Node{a, b}, pattern)
	require.NoError(t, err)
	require.Len(t, planned, 2)
	assert.Equal(t, NoConflict, planned[0].Conflict)
	assert.Equal(t, NoConflict, planned[1].Conflict)
}

func TestPreviewDoesNotMutateRemoteState(t *testing.T) {
	client := cloudclient.NewFake()
	ctx := context.Background()

	src, err := client.PutFile("/Docs/IMG_0001.jpg", []byte("a"), time.Now())
	require.NoError(t, err)

	pattern := Pattern{Search: `IMG_\d+`, Replace: "Photo", PreserveExtension: true}

	_, err = Preview(ctx, client, []cloudclient.Node{src}, pattern)
	require.NoError(t, err)

	node, found, err := client.NodeByPath(ctx, "/Docs/IMG_0001.jpg")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "IMG_0001.jpg", node.Name)
}
