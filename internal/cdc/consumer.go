package cdc

import (
	"encoding/binary"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"reifydb/internal/backend"
	"reifydb/internal/key"
)

// ConsumeFunc is the registered callback invoked with a batch of decoded
// CDC messages already filtered to the kinds this consumer cares about.
type ConsumeFunc func(msgs []Message) error

// PollConfig bounds a single poll iteration by whichever of max batch
// size or max wait duration triggers first, per the poll-batching detail
// supplemented from original_source/crates/cdc/src/poll.rs.
type PollConfig struct {
	MaxBatch int
	MaxWait  time.Duration
}

func (p PollConfig) withDefaults() PollConfig {
	if p.MaxBatch <= 0 {
		p.MaxBatch = 256
	}
	if p.MaxWait <= 0 {
		p.MaxWait = time.Second
	}
	return p
}

// Consumer polls a backend.CDC log for records up to a watermark-bounded
// safe version, decodes and filters them, and hands batches to a
// registered ConsumeFunc, checkpointing progress in a backend.SingleVersion
// store. Grounded on the teacher's background-worker shape
// (internal/storage/scheduler.go's running-flag start/stop idiom),
// generalized to CDC polling with backoff-on-error retry.
type Consumer struct {
	id             uint64
	checkpoints    backend.SingleVersion
	records        backend.CDC
	safeWatermark  func() uint64
	currentVersion func() uint64
	consume        ConsumeFunc
	filter         func(Change) bool
	poll           PollConfig
	newBackoff     func() backoff.BackOff
	log            *logrus.Entry

	running atomic.Bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewConsumer constructs a Consumer identified by id (used to key its
// checkpoint). safeWatermark reports the global CDC watermark (e.g.
// commitlog.Dispatcher.GlobalWatermark); currentVersion reports the
// transaction manager's current commit version. filter may be nil to
// accept every change kind.
func NewConsumer(
	id uint64,
	checkpoints backend.SingleVersion,
	records backend.CDC,
	safeWatermark func() uint64,
	currentVersion func() uint64,
	consume ConsumeFunc,
	filter func(Change) bool,
	poll PollConfig,
	log *logrus.Entry,
) *Consumer {
	return &Consumer{
		id:             id,
		checkpoints:    checkpoints,
		records:        records,
		safeWatermark:  safeWatermark,
		currentVersion: currentVersion,
		consume:        consume,
		filter:         filter,
		poll:           poll.withDefaults(),
		newBackoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0 // retry forever until Stop
			return b
		},
		log: log,
	}
}

func (c *Consumer) checkpointKey() key.Key { return key.CdcConsumerKey(c.id) }

func (c *Consumer) loadCheckpoint() (uint64, error) {
	v, ok, err := c.checkpoints.Get(c.checkpointKey())
	if err != nil {
		return 0, err
	}
	if !ok || len(v) < 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(v), nil
}

func (c *Consumer) storeCheckpoint(v uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return c.checkpoints.Set(c.checkpointKey(), buf)
}

// Start spawns the polling worker exactly once; calling it again while
// already running is a no-op.
func (c *Consumer) Start() {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	go c.loop()
}

// Stop signals the worker to exit and joins it; in-flight batches
// complete before shutdown.
func (c *Consumer) Stop() {
	if !c.running.CompareAndSwap(true, false) {
		return
	}
	close(c.stopCh)
	<-c.doneCh
}

func (c *Consumer) loop() {
	defer close(c.doneCh)
	bo := c.newBackoff()
	for {
		select {
		case <-c.stopCh:
			return
		default:
		}

		advanced, err := c.pollOnce()
		if err != nil {
			c.log.WithError(err).Warn("cdc: poll failed, retrying")
			wait := bo.NextBackOff()
			if wait == backoff.Stop {
				wait = 30 * time.Second
			}
			select {
			case <-time.After(wait):
			case <-c.stopCh:
			}
			continue
		}
		bo.Reset()

		if !advanced {
			select {
			case <-time.After(c.poll.MaxWait):
			case <-c.stopCh:
			}
		}
	}
}

// pollOnce runs one iteration of spec.md §4.13's six steps and reports
// whether it made progress (found any records to process).
func (c *Consumer) pollOnce() (bool, error) {
	current := c.currentVersion()

	deadline := time.Now().Add(c.poll.MaxWait)
	for c.safeWatermark() < current && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	safe := c.safeWatermark()
	if safe > current {
		safe = current
	}

	checkpoint, err := c.loadCheckpoint()
	if err != nil {
		return false, err
	}
	if safe <= checkpoint {
		return false, nil
	}

	it, err := c.records.Range(checkpoint+1, safe)
	if err != nil {
		return false, err
	}
	defer it.Close()

	var batch []Message
	lastVersion := checkpoint
	for it.Next() && len(batch) < c.poll.MaxBatch {
		rec := it.Item()
		msg, err := DecodeMessage(rec.Payload)
		if err != nil {
			return false, err
		}
		if c.filter != nil {
			filtered := msg.Changes[:0]
			for _, ch := range msg.Changes {
				if c.filter(ch) {
					filtered = append(filtered, ch)
				}
			}
			msg.Changes = filtered
		}
		batch = append(batch, msg)
		lastVersion = rec.Version
	}
	if err := it.Err(); err != nil {
		return false, err
	}
	if len(batch) == 0 {
		return false, nil
	}

	if err := c.consume(batch); err != nil {
		// rollback: leave the checkpoint untouched, retry later
		return false, err
	}
	if err := c.storeCheckpoint(lastVersion); err != nil {
		return false, err
	}
	return true, nil
}
