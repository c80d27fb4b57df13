package view

import (
	"sync"
	"time"
)

const DefaultCarouselInterval = 4 * time.Second

// Carousel auto-advances over a fixed number of slides. A length change
// restarts the timer; Stop cancels it for good.
type Carousel struct {
	interval time.Duration
	onChange func(index int)

	mu     sync.Mutex
	length int
	index  int

	reset    chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewCarousel starts the timer immediately. onChange runs on the carousel
// goroutine (or the caller's, for Jump) after every index change.
func NewCarousel(length int, interval time.Duration, onChange func(index int)) *Carousel {
	if interval <= 0 {
		interval = DefaultCarouselInterval
	}
	if length < 0 {
		length = 0
	}
	if onChange == nil {
		onChange = func(int) {}
	}
	c := &Carousel{
		interval: interval,
		onChange: onChange,
		length:   length,
		reset:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.loop()
	return c
}

func (c *Carousel) loop() {
	defer close(c.done)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	restart := func() {
		if ticker != nil {
			ticker.Stop()
			ticker, tick = nil, nil
		}
		if c.Len() > 0 {
			ticker = time.NewTicker(c.interval)
			tick = ticker.C
		}
	}
	restart()
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case <-c.stop:
			return
		case <-c.reset:
			restart()
		case <-tick:
			if idx, ok := c.advance(); ok {
				c.onChange(idx)
			}
		}
	}
}

func (c *Carousel) advance() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.length == 0 {
		return 0, false
	}
	c.index = (c.index + 1) % c.length
	return c.index, true
}

func (c *Carousel) Index() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.index
}

func (c *Carousel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.length
}

// Jump moves to slide i (dot controls). The timer keeps its phase.
func (c *Carousel) Jump(i int) bool {
	c.mu.Lock()
	if i < 0 || i >= c.length {
		c.mu.Unlock()
		return false
	}
	c.index = i
	c.mu.Unlock()
	c.onChange(i)
	return true
}

// SetLength changes the slide count and restarts the timer. An index past the
// new end goes back to the first slide.
func (c *Carousel) SetLength(n int) {
	if n < 0 {
		n = 0
	}
	c.mu.Lock()
	if n == c.length {
		c.mu.Unlock()
		return
	}
	c.length = n
	moved := false
	if c.index >= n && c.index != 0 {
		c.index = 0
		moved = true
	}
	c.mu.Unlock()

	select {
	case c.reset <- struct{}{}:
	default:
	}
	if moved && n > 0 {
		c.onChange(0)
	}
}

// Stop cancels the timer and waits for the carousel goroutine to exit.
func (c *Carousel) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}
