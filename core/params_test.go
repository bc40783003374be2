package core

import "testing"

func TestDefaultSchedulerParams_HasThreeBands(t *testing.T) {
	p := DefaultSchedulerParams()
	if len(p.Bands) != 3 {
		t.Fatalf("len(Bands) = %d, want 3", len(p.Bands))
	}
	if p.MoveQueueCapacity <= 0 {
		t.Fatal("MoveQueueCapacity should default to a positive value")
	}
}

func TestDefaultThreadPoolParams_WorkersIsNil(t *testing.T) {
	p := DefaultThreadPoolParams()
	if p.Workers != nil {
		t.Fatalf("Workers = %v, want nil (use every hardware thread)", *p.Workers)
	}
	if p.Weights != nil {
		t.Fatalf("Weights = %v, want nil (defers to NewThreadPool's biased n-i table)", p.Weights)
	}
}

func TestLoadSchedulerParamsYAML_OverridesBandsAndCapacity(t *testing.T) {
	data := []byte(`
bands:
  - priority: -5
    capacity: 16
  - priority: 5
    capacity: 32
move_queue_capacity: 128
`)
	p, err := LoadSchedulerParamsYAML(data)
	if err != nil {
		t.Fatalf("LoadSchedulerParamsYAML: %v", err)
	}
	if len(p.Bands) != 2 || p.Bands[0].Priority != -5 || p.Bands[1].Capacity != 32 {
		t.Fatalf("Bands = %+v, want the two declared bands", p.Bands)
	}
	if p.MoveQueueCapacity != 128 {
		t.Fatalf("MoveQueueCapacity = %d, want 128", p.MoveQueueCapacity)
	}
}

func TestLoadSchedulerParamsYAML_EmptyDataKeepsDefaults(t *testing.T) {
	p, err := LoadSchedulerParamsYAML([]byte(``))
	if err != nil {
		t.Fatalf("LoadSchedulerParamsYAML: %v", err)
	}
	if len(p.Bands) != 3 {
		t.Fatalf("Bands = %+v, want default three bands", p.Bands)
	}
}

func TestLoadSchedulerParamsFile_MissingFileReturnsDefaults(t *testing.T) {
	p := LoadSchedulerParamsFile("/nonexistent/path/to/params.yaml")
	if len(p.Bands) != 3 {
		t.Fatalf("Bands = %+v, want default three bands for a missing file", p.Bands)
	}
}

func TestLoadThreadPoolParamsYAML_WorkersRoundTrips(t *testing.T) {
	data := []byte(`
workers: 0
queue_capacity: 512
`)
	p, err := LoadThreadPoolParamsYAML(data)
	if err != nil {
		t.Fatalf("LoadThreadPoolParamsYAML: %v", err)
	}
	if p.Workers == nil || *p.Workers != 0 {
		t.Fatalf("Workers = %v, want pointer to 0 (manual mode)", p.Workers)
	}
	if p.QueueCapacity != 512 {
		t.Fatalf("QueueCapacity = %d, want 512", p.QueueCapacity)
	}
}

func TestLoadThreadPoolParamsYAML_NegativeWorkers(t *testing.T) {
	data := []byte(`workers: -2`)
	p, err := LoadThreadPoolParamsYAML(data)
	if err != nil {
		t.Fatalf("LoadThreadPoolParamsYAML: %v", err)
	}
	if p.Workers == nil || *p.Workers != -2 {
		t.Fatalf("Workers = %v, want pointer to -2", p.Workers)
	}
}
