package ssdface

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/test"
)

func newTestPool(t *testing.T, nets []*fakeNet) *Pool {
	t.Helper()
	i := 0
	p, err := newPool(len(nets), func() (*Detector, error) {
		d := newTestDetector(t, nets[i])
		i++
		return d, nil
	})
	test.That(t, err, test.ShouldBeNil)
	return p
}

func TestPoolDetect(t *testing.T) {
	var nets []*fakeNet
	for i := 0; i < 3; i++ {
		nets = append(nets, &fakeNet{
			rows:      [][]float32{detection(0.9, 0.25, 0.25, 0.75, 0.75)},
			forwardFn: func() { time.Sleep(time.Millisecond) },
		})
	}
	p := newTestPool(t, nets)
	test.That(t, p.Size(), test.ShouldEqual, 3)

	img := newTestImage(t, 32, 32)
	defer img.Close()

	var wg sync.WaitGroup
	var failed int32
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			detections, err := p.Detect(context.Background(), img, 0.5)
			if err != nil || len(detections) != 1 {
				atomic.AddInt32(&failed, 1)
			}
			CloseAll(detections)
		}()
	}
	wg.Wait()

	test.That(t, atomic.LoadInt32(&failed), test.ShouldEqual, int32(0))

	var total int32
	for _, n := range nets {
		total += atomic.LoadInt32(&n.forwards)
		test.That(t, atomic.LoadInt32(&n.overlap), test.ShouldEqual, int32(0))
	}
	test.That(t, total, test.ShouldEqual, int32(30))

	test.That(t, p.Close(), test.ShouldBeNil)
	test.That(t, p.Close(), test.ShouldBeNil)
	for _, n := range nets {
		test.That(t, atomic.LoadInt32(&n.closed), test.ShouldEqual, int32(1))
	}

	_, err := p.Detect(context.Background(), img, 0.5)
	test.That(t, errors.Is(err, ErrPoolClosed), test.ShouldBeTrue)
}

func TestPoolDetectContext(t *testing.T) {
	p := newTestPool(t, []*fakeNet{{rows: [][]float32{detection(0.9, 0.1, 0.1, 0.5, 0.5)}}})

	d, err := p.acquire(context.Background())
	test.That(t, err, test.ShouldBeNil)

	img := newTestImage(t, 16, 16)
	defer img.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Detect(ctx, img, 0.5)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)

	closed := make(chan error)
	go func() {
		closed <- p.Close()
	}()

	select {
	case <-closed:
		t.Fatal("pool closed while detector is borrowed")
	case <-time.After(10 * time.Millisecond):
	}

	p.release(d)
	test.That(t, <-closed, test.ShouldBeNil)
}

func TestNewPoolErrors(t *testing.T) {
	_, err := newPool(0, nil)
	test.That(t, err, test.ShouldNotBeNil)

	built := &fakeNet{}
	calls := 0
	_, err = newPool(2, func() (*Detector, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("boom")
		}
		return newTestDetector(t, built), nil
	})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "boom")
	test.That(t, atomic.LoadInt32(&built.closed), test.ShouldEqual, int32(1))

	_, err = NewPool(t.TempDir(), 2)
	test.That(t, errors.Is(err, ErrModelLoad), test.ShouldBeTrue)
}

func TestPoolCloseWithWaiters(t *testing.T) {
	net := &fakeNet{rows: [][]float32{detection(0.9, 0.1, 0.1, 0.5, 0.5)}}
	p := newTestPool(t, []*fakeNet{net})

	d, err := p.acquire(context.Background())
	test.That(t, err, test.ShouldBeNil)

	img := newTestImage(t, 16, 16)
	defer img.Close()

	waiters := make(chan error, 4)
	for i := 0; i < cap(waiters); i++ {
		go func() {
			_, err := p.Detect(context.Background(), img, 0.5)
			waiters <- err
		}()
	}

	closed := make(chan error)
	go func() {
		closed <- p.Close()
	}()
	<-p.done

	p.release(d)
	test.That(t, <-closed, test.ShouldBeNil)

	for i := 0; i < cap(waiters); i++ {
		test.That(t, errors.Is(<-waiters, ErrPoolClosed), test.ShouldBeTrue)
	}
	test.That(t, atomic.LoadInt32(&net.forwards), test.ShouldEqual, int32(0))
	test.That(t, atomic.LoadInt32(&net.closed), test.ShouldEqual, int32(1))
}
