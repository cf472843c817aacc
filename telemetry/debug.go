// Package telemetry collects per-frame latency and size figures reported by
// the backend, for the debug report sent when publishing stops.
package telemetry

import (
	"sync"
	"time"

	"marionette/protocol"
)

// warmupFrames are counted but not recorded; the pipeline is still settling.
const warmupFrames = 10

type DebugDataDetail struct {
	Input     []int32 `json:"input"`
	Output    []int32 `json:"output"`
	GRPC      []int32 `json:"grpc,omitempty"`
	Inference []int32 `json:"inference,omitempty"`
	Client    []int32 `json:"client,omitempty"`
}

type DebugDataSet struct {
	Latency    DebugDataDetail `json:"latency"`
	DataSize   DebugDataDetail `json:"dataSize"`
	FPS        []int32         `json:"fps"`
	StartedAt  int64           `json:"startedAt"` // unix milliseconds
	TotalCount int             `json:"totalCount"`
	FrameRate  int             `json:"frameRate"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
}

// Collector accumulates a DebugDataSet. It is safe for concurrent use.
type Collector struct {
	mu   sync.Mutex
	data DebugDataSet
	now  func() time.Time
}

func NewCollector() *Collector {
	return &Collector{now: time.Now}
}

// Start clears previous figures and records the stream geometry.
func (c *Collector) Start(frameRate, width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = DebugDataSet{
		Latency:   DebugDataDetail{Input: []int32{}, Output: []int32{}, GRPC: []int32{}, Inference: []int32{}, Client: []int32{}},
		DataSize:  DebugDataDetail{Input: []int32{}, Output: []int32{}},
		FPS:       []int32{},
		StartedAt: c.now().UnixMilli(),
		FrameRate: frameRate,
		Width:     width,
		Height:    height,
	}
}

// Add records one response. Stages missing from a short step or dataSize
// array are skipped rather than recorded as zero.
func (c *Collector) Add(resp *protocol.StreamResponse) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data.TotalCount++
	if c.data.TotalCount <= warmupFrames {
		return
	}
	lat := &c.data.Latency
	appendAt(&lat.Input, resp.Step, 0)
	appendAt(&lat.GRPC, resp.Step, 1)
	appendAt(&lat.Inference, resp.Step, 2)
	appendAt(&lat.Output, resp.Step, 3)
	appendAt(&lat.Client, resp.Step, 4)
	appendAt(&c.data.DataSize.Input, resp.DataSize, 0)
	appendAt(&c.data.DataSize.Output, resp.DataSize, 1)
	c.data.FPS = append(c.data.FPS, resp.FPS)
}

// Snapshot returns a deep copy of the figures collected so far.
func (c *Collector) Snapshot() DebugDataSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.data
	out.Latency = cloneDetail(c.data.Latency)
	out.DataSize = cloneDetail(c.data.DataSize)
	out.FPS = append([]int32(nil), c.data.FPS...)
	return out
}

func appendAt(dst *[]int32, src []int32, i int) {
	if i < len(src) {
		*dst = append(*dst, src[i])
	}
}

func cloneDetail(d DebugDataDetail) DebugDataDetail {
	return DebugDataDetail{
		Input:     append([]int32(nil), d.Input...),
		Output:    append([]int32(nil), d.Output...),
		GRPC:      append([]int32(nil), d.GRPC...),
		Inference: append([]int32(nil), d.Inference...),
		Client:    append([]int32(nil), d.Client...),
	}
}
