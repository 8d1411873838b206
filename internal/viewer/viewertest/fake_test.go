package viewertest_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nki-radiology/SegmentationReview/internal/viewer"
	"github.com/nki-radiology/SegmentationReview/internal/viewer/viewertest"
)

func TestFakeVolumeLifecycle(t *testing.T) {
	fake := viewertest.New()
	ctx := context.Background()

	id, err := fake.LoadVolume(ctx, "/data/P-0001/image.nii.gz")
	if err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}
	if err := fake.PresentVolume(ctx, id); err != nil {
		t.Fatalf("PresentVolume: %v", err)
	}
	if vol := fake.Volume(id); vol == nil || !vol.Presented {
		t.Fatalf("volume %s not presented: %+v", id, vol)
	}

	present, err := fake.NodePresent(ctx, id)
	if err != nil || !present {
		t.Fatalf("NodePresent = %v, %v, want true", present, err)
	}
	if err := fake.ReleaseNode(ctx, id); err != nil {
		t.Fatalf("ReleaseNode: %v", err)
	}
	present, err = fake.NodePresent(ctx, id)
	if err != nil || present {
		t.Fatalf("NodePresent after release = %v, %v, want false", present, err)
	}
	if err := fake.ReleaseNode(ctx, id); !errors.Is(err, viewer.ErrNodeAbsent) {
		t.Fatalf("second ReleaseNode = %v, want ErrNodeAbsent", err)
	}
}

func TestFakeStubRegions(t *testing.T) {
	fake := viewertest.New()
	ctx := context.Background()

	fake.StubSegmentation("/data/P-0001/tumor_segmentation.nii.gz", "prostate", "Lesion")
	id, err := fake.LoadSegmentation(ctx, "/data/P-0001/tumor_segmentation.nii.gz")
	if err != nil {
		t.Fatalf("LoadSegmentation: %v", err)
	}
	regions, err := fake.Regions(ctx, id)
	if err != nil {
		t.Fatalf("Regions: %v", err)
	}
	if len(regions) != 2 || regions[0].Name != "prostate" || regions[1].Name != "Lesion" {
		t.Fatalf("unexpected regions: %+v", regions)
	}
}

func TestFakeSaveWritesFile(t *testing.T) {
	fake := viewertest.New()
	ctx := context.Background()

	id, err := fake.CreateSegmentation(ctx, "Segmentation")
	if err != nil {
		t.Fatalf("CreateSegmentation: %v", err)
	}
	if _, err := fake.CreateRegion(ctx, id, "Prostate", &viewer.RegionStyle{Color: [3]float64{1, 0, 0}, Opacity: 1}); err != nil {
		t.Fatalf("CreateRegion: %v", err)
	}

	path := filepath.Join(t.TempDir(), "segmentation.seg.nrrd")
	if err := fake.SaveSegmentation(ctx, id, path); err != nil {
		t.Fatalf("SaveSegmentation: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read saved file: %v", err)
	}
	if !strings.Contains(string(data), "region Prostate") {
		t.Fatalf("saved file missing region record: %q", data)
	}
	if seg := fake.Segmentation(id); len(seg.SavedTo) != 1 || seg.SavedTo[0] != path {
		t.Fatalf("SavedTo = %v, want [%s]", seg.SavedTo, path)
	}
}

func TestFakeScriptedFailureIsOneShot(t *testing.T) {
	fake := viewertest.New()
	ctx := context.Background()

	boom := errors.New("boom")
	fake.Fail("LoadVolume", boom)
	if _, err := fake.LoadVolume(ctx, "/data/P-0001/image.nii.gz"); !errors.Is(err, boom) {
		t.Fatalf("scripted LoadVolume = %v, want boom", err)
	}
	if _, err := fake.LoadVolume(ctx, "/data/P-0001/image.nii.gz"); err != nil {
		t.Fatalf("LoadVolume after scripted failure: %v", err)
	}
}

func TestFakeBindEditorChecksNodes(t *testing.T) {
	fake := viewertest.New()
	ctx := context.Background()

	volID, err := fake.LoadVolume(ctx, "/data/P-0001/image.nii.gz")
	if err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}
	segID, err := fake.CreateSegmentation(ctx, "Segmentation")
	if err != nil {
		t.Fatalf("CreateSegmentation: %v", err)
	}
	if err := fake.BindEditor(ctx, segID, volID); err != nil {
		t.Fatalf("BindEditor: %v", err)
	}
	if err := fake.BindEditor(ctx, "seg-999", volID); !errors.Is(err, viewer.ErrNodeAbsent) {
		t.Fatalf("BindEditor with unknown node = %v, want ErrNodeAbsent", err)
	}
	if got := fake.Bindings(); len(got) != 1 || got[0].SegmentationID != segID {
		t.Fatalf("Bindings = %+v", got)
	}
}

func TestFakeSceneClearedReleasesNodesAndNotifies(t *testing.T) {
	fake := viewertest.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	volID, err := fake.LoadVolume(ctx, "/data/P-0001/image.nii.gz")
	if err != nil {
		t.Fatalf("LoadVolume: %v", err)
	}
	events, err := fake.Subscribe(ctx)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}

	fake.EmitSceneCleared()

	select {
	case event := <-events:
		if event.Kind != viewer.EventSceneCleared {
			t.Fatalf("event kind = %v, want scene-cleared", event.Kind)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scene event")
	}
	if present, _ := fake.NodePresent(ctx, volID); present {
		t.Fatalf("volume %s still present after scene clear", volID)
	}

	cancel()
	select {
	case _, open := <-events:
		if open {
			t.Fatal("expected channel close after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
