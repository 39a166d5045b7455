package jobstore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{
		BasePath:          t.TempDir(),
		DirWaitCount:      3,
		DirWaitInterval:   time.Millisecond,
		InputWaitCount:    5,
		InputWaitInterval: time.Millisecond,
	}, nil)
	require.NoError(t, err)
	return s
}

func TestNewRequiresBasePath(t *testing.T) {
	_, err := New(Config{}, nil)
	require.Error(t, err)
}

func TestCreateJobDir(t *testing.T) {
	s := newTestStore(t)

	dir, err := s.CreateJobDir("job-1")
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, os.FileMode(0o775), info.Mode().Perm())
	assert.Equal(t, filepath.Join(s.BasePath(), "job-1"), dir)
}

func TestCreateJobDirRequiresID(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateJobDir("  ")
	require.Error(t, err)
}

func TestStageInputWritesFinalFile(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateJobDir("job-1")
	require.NoError(t, err)

	path, err := s.StageInput("job-1", strings.NewReader("1\t2\n2\t3\n"))
	require.NoError(t, err)

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "1\t2\n2\t3\n", string(b))

	// The temp name must be gone after the rename.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

// Any concurrent reader of the final filename must observe either the
// complete file or no file, never a partial write.
func TestStageInputIsAtomic(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateJobDir("job-1")
	require.NoError(t, err)

	payload := strings.Repeat("123\t456\n", 20000)
	final := s.EdgeFilePath("job-1")

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			b, err := os.ReadFile(final)
			if os.IsNotExist(err) {
				continue
			}
			if err != nil {
				t.Errorf("unexpected read error: %v", err)
				return
			}
			if len(b) != len(payload) {
				t.Errorf("observed partial write: %d of %d bytes", len(b), len(payload))
				return
			}
		}
	}()

	for i := 0; i < 25; i++ {
		_, err := s.StageInput("job-1", strings.NewReader(payload))
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()
}

func TestWaitForInput(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateJobDir("job-1")
	require.NoError(t, err)

	t.Run("appears late", func(t *testing.T) {
		go func() {
			time.Sleep(2 * time.Millisecond)
			_, _ = s.StageInput("job-1", strings.NewReader("1\t2\n"))
		}()

		path, err := s.WaitForInput(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, s.EdgeFilePath("job-1"), path)
	})

	t.Run("bounded", func(t *testing.T) {
		_, err := s.WaitForInput(context.Background(), "never-staged")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "did not appear")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := s.WaitForInput(ctx, "never-staged")
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestRemoveJobDir(t *testing.T) {
	s := newTestStore(t)
	dir, err := s.CreateJobDir("job-1")
	require.NoError(t, err)
	_, err = s.StageInput("job-1", strings.NewReader("1\t2\n"))
	require.NoError(t, err)

	s.RemoveJobDir("job-1")

	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))

	// Removing an already-removed directory must not panic or error out.
	s.RemoveJobDir("job-1")
}
