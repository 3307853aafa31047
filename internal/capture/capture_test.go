package capture

import (
	"reflect"
	"testing"
)

func TestFrameBytes(t *testing.T) {
	s := Size{Cols: 80, Rows: 50}
	if got := s.FrameBytes(); got != 12000 {
		t.Fatalf("FrameBytes = %d, want 12000", got)
	}
}

func TestCaptureArgs(t *testing.T) {
	stage := NewStage(":3", Config{
		Binary:     "ffmpeg",
		GameWidth:  1280,
		GameHeight: 720,
		FrameRate:  30,
	})

	got := stage.args(Size{Cols: 80, Rows: 44})
	want := []string{
		"-f", "x11grab",
		"-framerate", "30",
		"-video_size", "1280x720",
		"-i", ":3",
		"-f", "rawvideo",
		"-vf", "scale=80x44,setsar=1:1",
		"-pix_fmt", "rgb24",
		"pipe:",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v, want %v", got, want)
	}
}

func TestResizeToCurrentSizeIsNoOp(t *testing.T) {
	stage := NewStage(":1", Config{Binary: "ffmpeg", GameWidth: 640, GameHeight: 480, FrameRate: 30})
	stage.size = Size{Cols: 80, Rows: 44}
	gen := stage.Generation()

	restarted, err := stage.Resize(Size{Cols: 80, Rows: 44})
	if err != nil {
		t.Fatalf("Resize: %v", err)
	}
	if restarted {
		t.Fatal("resize to current size restarted the child")
	}
	if stage.Generation() != gen {
		t.Fatal("resize to current size bumped the generation")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	stage := NewStage(":1", Config{Binary: "ffmpeg"})
	stage.Stop()
	stage.Stop()

	if err := stage.Start(Size{Cols: 2, Rows: 2}); err != ErrStopped {
		t.Fatalf("Start after Stop = %v, want ErrStopped", err)
	}
	if _, err := stage.Resize(Size{Cols: 2, Rows: 2}); err != ErrStopped {
		t.Fatalf("Resize after Stop = %v, want ErrStopped", err)
	}
}

func TestReadAfterStopReturnsEOF(t *testing.T) {
	stage := NewStage(":1", Config{Binary: "ffmpeg"})
	stage.Stop()

	buf := make([]byte, 16)
	n, err := stage.Read(buf)
	if n != 0 || err == nil {
		t.Fatalf("Read = (%d, %v), want (0, io.EOF)", n, err)
	}
}
