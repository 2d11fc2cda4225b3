package mcproxy

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/mrizzuto/mcproxy/config"
)

var shutdownSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// Service represents concurrent job, that is expected to run in background for the whole lifetime of the process.
// Typical implementations of Service include network servers, such as HTTP or gRPC servers.
type Service interface {
	// Start is expected to start execution of the service and block.
	// If the execution cannot be started, or it fails abruptly, it should return a non-nil error.
	Start() error

	// Stop is expected to stop the running service gracefully and unblock the thread used by Start function.
	Stop() error
}

// StartAndBlock starts all passed services in their designated goroutines and then blocks the current thread.
// Thread is unblocked when the process receives SIGINT or SIGTERM signals or one of the Start() functions returns an error.
// When exiting, StartAndBlock gracefully stops all the services by calling their Stop() functions and waiting for them to exit.
func StartAndBlock(services ...Service) error {
	errorChannel := make(chan error)

	for _, service := range services {
		s := service

		go func() {
			defer func() {
				if r := recover(); r != nil {
					select {
					case errorChannel <- fmt.Errorf("%v", r):
					default:
					}
				}
			}()

			if err := s.Start(); err != nil {
				select {
				case errorChannel <- err:
				default:
				}
			}
		}()
	}

	defer func() {
		wg := &sync.WaitGroup{}
		wg.Add(len(services))

		for _, service := range services {
			s := service

			go func() {
				defer func() {
					if r := recover(); r != nil {
						_, _ = fmt.Fprintf(os.Stderr, "Panic while stopping service: %v\n", r)
					}

					wg.Done()
				}()

				s.Stop()
			}()
		}

		wg.Wait()
	}()

	return blockThread(errorChannel)
}

// MetricsService adapts an *http.Server exposing a Prometheus scrape endpoint to the Service
// interface, so the metrics listener shares mcproxyd's signal-driven shutdown with Server instead
// of being started/stopped by hand with its own goroutine and deferred Close.
type MetricsService struct {
	server *http.Server
}

// NewMetricsService wraps server as a Service. server.Handler is expected to already be set to a
// promhttp handler bound to the registry the router's RouterMetrics were registered against.
func NewMetricsService(server *http.Server) *MetricsService {
	return &MetricsService{server: server}
}

// Start implements Service. It blocks until the server is closed.
func (m *MetricsService) Start() error {
	err := m.server.ListenAndServe()
	if err != nil && errors.Is(err, http.ErrServerClosed) {
		return nil
	}

	return err
}

// Stop implements Service.
func (m *MetricsService) Stop() error {
	return m.server.Shutdown(context.Background())
}

// ConfigWatcherService adapts a config.Watcher to the Service interface, so configuration
// hot-reload shares StartAndBlock's shutdown signal handling instead of being closed via a
// standalone defer in main.
type ConfigWatcherService struct {
	path       string
	onReload   func(*config.RouterConfig)
	onError    func(error)
	watcher    *config.Watcher
	startError chan error
}

// NewConfigWatcherService returns a Service that starts watching path for changes once Start is
// called, rather than at construction time, so a failed watch reports through the Service error
// channel like any other service's Start failure instead of being handled separately in main.
func NewConfigWatcherService(path string, onReload func(*config.RouterConfig), onError func(error)) *ConfigWatcherService {
	return &ConfigWatcherService{
		path:       path,
		onReload:   onReload,
		onError:    onError,
		startError: make(chan error, 1),
	}
}

// Start implements Service. It blocks until Stop is called or the watcher cannot be established.
func (c *ConfigWatcherService) Start() error {
	watcher, err := config.NewWatcher(c.path, c.onReload, c.onError)
	if err != nil {
		return err
	}

	c.watcher = watcher
	return <-c.startError
}

// Stop implements Service.
func (c *ConfigWatcherService) Stop() error {
	if c.watcher == nil {
		return nil
	}

	err := c.watcher.Close()

	select {
	case c.startError <- nil:
	default:
	}

	return err
}

func blockThread(errorChannel <-chan error) error {
	shutdownSignalsChannel := make(chan os.Signal)
	signal.Notify(shutdownSignalsChannel, shutdownSignals...)

	for {
		select {
		case err := <-errorChannel:
			return err
		case <-shutdownSignalsChannel:
			return nil
		}
	}
}
