package delivery

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lenshook/lenshook/internal/results"
)

type fakeStore struct {
	result results.DetectionResult
	err    error
}

func (f *fakeStore) Get(ctx context.Context, predictionID string) (results.DetectionResult, error) {
	if f.err != nil {
		return results.DetectionResult{}, f.err
	}
	return f.result, nil
}

type fakeBlobs struct {
	err     error
	written []string
}

func (f *fakeBlobs) Download(ctx context.Context, key, destPath string) error {
	if f.err != nil {
		return f.err
	}
	if err := os.WriteFile(destPath, []byte("annotated"), 0o600); err != nil {
		return err
	}
	f.written = append(f.written, destPath)
	return nil
}

type fakeGateway struct {
	texts      []string
	photoPaths []string
	chatIDs    []int64
	sendErr    error
	photoErr   error
}

func (f *fakeGateway) SendText(ctx context.Context, chatID int64, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.texts = append(f.texts, text)
	f.chatIDs = append(f.chatIDs, chatID)
	return nil
}

func (f *fakeGateway) SendPhoto(ctx context.Context, chatID int64, localPath string) error {
	if f.photoErr != nil {
		return f.photoErr
	}
	f.photoPaths = append(f.photoPaths, localPath)
	return nil
}

func catResult() results.DetectionResult {
	return results.DetectionResult{
		PredictionID:     "p1",
		ChatID:           42,
		Labels:           []results.Label{{Class: "cat"}},
		PredictedImgPath: "out/p1.jpg",
		OriginalImgPath:  "incoming/abc.jpg",
		Time:             time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC),
	}
}

func newTestService(t *testing.T, store ResultStore, blobs BlobStore, gw ChatGateway) *Service {
	t.Helper()
	return NewService(nil, store, blobs, gw, t.TempDir())
}

func TestHandleCompletionDeliversTextAndPhoto(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	blobs := &fakeBlobs{}
	svc := newTestService(t, &fakeStore{result: catResult()}, blobs, gw)

	require.NoError(t, svc.HandleCompletion(context.Background(), "p1"))

	require.Len(t, gw.texts, 1)
	require.Contains(t, gw.texts[0], "cat")
	require.Equal(t, []int64{42}, gw.chatIDs)
	require.Len(t, gw.photoPaths, 1)

	// temp image removed after send
	_, err := os.Stat(gw.photoPaths[0])
	require.True(t, os.IsNotExist(err))
}

func TestHandleCompletionUnknownID(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	svc := newTestService(t, &fakeStore{err: results.ErrNotFound}, &fakeBlobs{}, gw)

	err := svc.HandleCompletion(context.Background(), "nope")
	require.ErrorIs(t, err, results.ErrNotFound)
	require.Empty(t, gw.texts)
	require.Empty(t, gw.photoPaths)
}

func TestHandleCompletionMissingChatID(t *testing.T) {
	t.Parallel()

	result := catResult()
	result.ChatID = 0
	gw := &fakeGateway{}
	svc := newTestService(t, &fakeStore{result: result}, &fakeBlobs{}, gw)

	err := svc.HandleCompletion(context.Background(), "p1")
	require.ErrorIs(t, err, results.ErrMissingChatID)
	require.Empty(t, gw.texts)
}

func TestHandleCompletionNoLabels(t *testing.T) {
	t.Parallel()

	result := catResult()
	result.Labels = nil
	result.PredictedImgPath = ""
	gw := &fakeGateway{}
	svc := newTestService(t, &fakeStore{result: result}, &fakeBlobs{}, gw)

	require.NoError(t, svc.HandleCompletion(context.Background(), "p1"))
	require.Len(t, gw.texts, 1)
	require.Contains(t, gw.texts[0], "No objects detected")
	require.Empty(t, gw.photoPaths)
}

func TestHandleCompletionImageFetchFailureKeepsSummary(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	svc := newTestService(t, &fakeStore{result: catResult()}, &fakeBlobs{err: errors.New("gone")}, gw)

	require.NoError(t, svc.HandleCompletion(context.Background(), "p1"))
	require.Len(t, gw.texts, 2)
	require.Contains(t, gw.texts[0], "cat")
	require.Equal(t, replyImageFailed, gw.texts[1])
	require.Empty(t, gw.photoPaths)
}

func TestHandleCompletionPhotoSendFailureReportsDistinctly(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{photoErr: errors.New("blocked")}
	blobs := &fakeBlobs{}
	svc := newTestService(t, &fakeStore{result: catResult()}, blobs, gw)

	require.NoError(t, svc.HandleCompletion(context.Background(), "p1"))
	require.Len(t, gw.texts, 2)
	require.Equal(t, replyImageFailed, gw.texts[1])

	// temp file removed even though the send failed
	require.Len(t, blobs.written, 1)
	_, err := os.Stat(blobs.written[0])
	require.True(t, os.IsNotExist(err))
}

func TestHandleCompletionSummaryTraceability(t *testing.T) {
	t.Parallel()

	gw := &fakeGateway{}
	svc := newTestService(t, &fakeStore{result: catResult()}, &fakeBlobs{}, gw)

	require.NoError(t, svc.HandleCompletion(context.Background(), "p1"))
	summary := gw.texts[0]
	for _, want := range []string{"incoming/abc.jpg", "2026-08-30"} {
		if !strings.Contains(summary, want) {
			t.Fatalf("summary missing %q: %q", want, summary)
		}
	}
}
