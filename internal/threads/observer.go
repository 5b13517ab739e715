package threads

import "time"

// Observer receives pipeline events, e.g. for metrics.
type Observer interface {
	ContainerCreated(kind string)
	ContainerPolled(status ContainerStatus)
	ComposeFinished(mediaType MediaType, code string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ContainerCreated(string) {}

func (nopObserver) ContainerPolled(ContainerStatus) {}

func (nopObserver) ComposeFinished(MediaType, string, time.Duration) {}
