// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package common

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	// BucketAgeKey annotates a metric with the bucket it was recorded against:
	// young, mature, or mailbox.
	BucketAgeKey = "bucket_age"

	// EvacuatedKey annotates a GC cycle metric with whether it evacuated
	// fragmented blocks.
	EvacuatedKey = "evacuated"
)

var (
	allocMeter     = otel.Meter("allocator")
	collectorMeter = otel.Meter("collector")
	schedulerMeter = otel.Meter("scheduler")

	bucketAgeAttributeSet sync.Map
	evacuatedAttributeSet sync.Map
)

func loadOrStoreAttributeOption[K comparable](mp *sync.Map, key K, attrSetGenFunc func() attribute.Set) metric.MeasurementOption {
	attrSet, ok := mp.Load(key)
	if ok {
		return attrSet.(metric.MeasurementOption)
	}
	v, _ := mp.LoadOrStore(key, metric.WithAttributeSet(attrSetGenFunc()))
	return v.(metric.MeasurementOption)
}

func getBucketAgeAttributeSet(age string) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&bucketAgeAttributeSet, age, func() attribute.Set {
		return attribute.NewSet(attribute.String(BucketAgeKey, age))
	})
}

func getEvacuatedAttributeSet(evacuated bool) metric.MeasurementOption {
	return loadOrStoreAttributeOption(&evacuatedAttributeSet, evacuated, func() attribute.Set {
		return attribute.NewSet(attribute.Bool(EvacuatedKey, evacuated))
	})
}

// AllocatorMetricHandle records counters for the allocation path: every
// bump-allocated object and every fresh block a bucket requests from the
// GlobalAllocator, broken down by bucket age.
type AllocatorMetricHandle interface {
	ObjectsAllocated(ctx context.Context, inc int64, bucketAge string)
	BlocksRequested(ctx context.Context, inc int64, bucketAge string)
}

// CollectorMetricHandle records counters and histograms for the collector
// driver: cycles run, blocks reclaimed, and the survivor ratio a cycle
// observed (the same ratio UpdateThreshold consults when deciding whether
// to grow a heap's threshold).
type CollectorMetricHandle interface {
	CyclesRun(ctx context.Context, inc int64, bucketAge string, evacuated bool)
	BlocksReclaimed(ctx context.Context, inc int64, bucketAge string)
	SurvivorRatio(ctx context.Context, ratio float64, bucketAge string)
}

// SchedulerMetricHandle records counters for process lifecycle events: spawn,
// exit, and message sends through the mailbox copy path.
type SchedulerMetricHandle interface {
	ProcessesSpawned(ctx context.Context, inc int64)
	ProcessesExited(ctx context.Context, inc int64)
	MessagesSent(ctx context.Context, inc int64)
}

// MetricHandle is the full set of VM runtime metrics exposed to the
// interpreter and scheduler.
type MetricHandle interface {
	AllocatorMetricHandle
	CollectorMetricHandle
	SchedulerMetricHandle
}

type otelMetrics struct {
	objectsAllocated metric.Int64Counter
	blocksRequested  metric.Int64Counter

	cyclesRun       metric.Int64Counter
	blocksReclaimed metric.Int64Counter
	survivorRatio   metric.Float64Histogram

	processesSpawned metric.Int64Counter
	processesExited  metric.Int64Counter
	messagesSent     metric.Int64Counter
}

func (o *otelMetrics) ObjectsAllocated(ctx context.Context, inc int64, bucketAge string) {
	o.objectsAllocated.Add(ctx, inc, getBucketAgeAttributeSet(bucketAge))
}

func (o *otelMetrics) BlocksRequested(ctx context.Context, inc int64, bucketAge string) {
	o.blocksRequested.Add(ctx, inc, getBucketAgeAttributeSet(bucketAge))
}

func (o *otelMetrics) CyclesRun(ctx context.Context, inc int64, bucketAge string, evacuated bool) {
	o.cyclesRun.Add(ctx, inc, getBucketAgeAttributeSet(bucketAge), getEvacuatedAttributeSet(evacuated))
}

func (o *otelMetrics) BlocksReclaimed(ctx context.Context, inc int64, bucketAge string) {
	o.blocksReclaimed.Add(ctx, inc, getBucketAgeAttributeSet(bucketAge))
}

func (o *otelMetrics) SurvivorRatio(ctx context.Context, ratio float64, bucketAge string) {
	o.survivorRatio.Record(ctx, ratio, getBucketAgeAttributeSet(bucketAge))
}

func (o *otelMetrics) ProcessesSpawned(ctx context.Context, inc int64) {
	o.processesSpawned.Add(ctx, inc)
}

func (o *otelMetrics) ProcessesExited(ctx context.Context, inc int64) {
	o.processesExited.Add(ctx, inc)
}

func (o *otelMetrics) MessagesSent(ctx context.Context, inc int64) {
	o.messagesSent.Add(ctx, inc)
}

// NewOTelMetrics builds the VM's MetricHandle against the global otel
// MeterProvider configured by cmd at startup (see cmd.setupMetrics).
func NewOTelMetrics() (MetricHandle, error) {
	objectsAllocated, err1 := allocMeter.Int64Counter("allocator/objects_allocated",
		metric.WithDescription("The cumulative number of objects bump-allocated into a bucket."))
	blocksRequested, err2 := allocMeter.Int64Counter("allocator/blocks_requested",
		metric.WithDescription("The cumulative number of 32KiB blocks a bucket requested from the GlobalAllocator."))

	cyclesRun, err3 := collectorMeter.Int64Counter("collector/cycles_run",
		metric.WithDescription("The cumulative number of stop-the-world collection cycles run against a heap."))
	blocksReclaimed, err4 := collectorMeter.Int64Counter("collector/blocks_reclaimed",
		metric.WithDescription("The cumulative number of empty blocks returned to the GlobalAllocator after a cycle."))
	survivorRatio, err5 := collectorMeter.Float64Histogram("collector/survivor_ratio",
		metric.WithDescription("The fraction of a heap's live objects that survived a collection cycle."))

	processesSpawned, err6 := schedulerMeter.Int64Counter("scheduler/processes_spawned",
		metric.WithDescription("The cumulative number of processes spawned onto the worker pool."))
	processesExited, err7 := schedulerMeter.Int64Counter("scheduler/processes_exited",
		metric.WithDescription("The cumulative number of processes whose heaps were released back to the GlobalAllocator."))
	messagesSent, err8 := schedulerMeter.Int64Counter("scheduler/messages_sent",
		metric.WithDescription("The cumulative number of messages deep-copied into a receiver's mailbox heap."))

	if err := errors.Join(err1, err2, err3, err4, err5, err6, err7, err8); err != nil {
		return nil, err
	}

	return &otelMetrics{
		objectsAllocated: objectsAllocated,
		blocksRequested:  blocksRequested,
		cyclesRun:        cyclesRun,
		blocksReclaimed:  blocksReclaimed,
		survivorRatio:    survivorRatio,
		processesSpawned: processesSpawned,
		processesExited:  processesExited,
		messagesSent:     messagesSent,
	}, nil
}

// noopMetrics discards every observation; used when metrics are disabled.
type noopMetrics struct{}

// NewNoopMetrics returns a MetricHandle that discards every observation.
func NewNoopMetrics() MetricHandle {
	var n noopMetrics
	return &n
}

func (*noopMetrics) ObjectsAllocated(context.Context, int64, string) {}
func (*noopMetrics) BlocksRequested(context.Context, int64, string)  {}
func (*noopMetrics) CyclesRun(context.Context, int64, string, bool)  {}
func (*noopMetrics) BlocksReclaimed(context.Context, int64, string)  {}
func (*noopMetrics) SurvivorRatio(context.Context, float64, string)  {}
func (*noopMetrics) ProcessesSpawned(context.Context, int64)         {}
func (*noopMetrics) ProcessesExited(context.Context, int64)          {}
func (*noopMetrics) MessagesSent(context.Context, int64)             {}
