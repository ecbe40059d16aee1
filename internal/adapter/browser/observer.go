package browser

import (
	"sync"

	"github.com/playwright-community/playwright-go"
	"github.com/sirupsen/logrus"
)

// observer offers every XHR/fetch body seen by the page to the capture.
// Reading a body needs a round trip to the driver and blocks until the
// exchange finishes, so each response is read on its own goroutine, off the
// driver's event loop. The first body to complete with a qualifying payload
// wins.
type observer struct {
	capture *Capture
	log     *logrus.Entry

	wg   sync.WaitGroup
	done chan struct{}
	once sync.Once
}

func newObserver(capture *Capture, log *logrus.Entry) *observer {
	return &observer{
		capture: capture,
		log:     log,
		done:    make(chan struct{}),
	}
}

// enqueue is registered as the page's response handler. It never blocks.
func (o *observer) enqueue(resp playwright.Response) {
	if o.stopped() || o.capture.Claimed() || !isDataRequest(resp) {
		return
	}
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.handle(resp)
	}()
}

// stop makes later responses a no-op. Reads still in flight end when the
// page closes.
func (o *observer) stop() {
	o.once.Do(func() { close(o.done) })
}

func (o *observer) stopped() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

func (o *observer) handle(resp playwright.Response) {
	if o.capture.Claimed() {
		return
	}
	body, err := resp.Body()
	if err != nil {
		o.log.WithError(err).WithField("url", resp.URL()).Debug("read response body")
		return
	}
	if o.stopped() {
		return
	}
	if o.capture.Offer(body) {
		o.log.WithField("url", resp.URL()).Info("captured video payload")
	}
}

func isDataRequest(resp playwright.Response) bool {
	switch resp.Request().ResourceType() {
	case "xhr", "fetch":
		return true
	}
	return false
}
