package instana

import (
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
)

// instanceID identifies this process for its whole lifetime in environments where
// the OS pid says nothing about the logical process, such as function runtimes that
// reuse pid 1 for every instance.
var instanceID = sync.OnceValue(func() string {
	return uuid.NewString()
})

// ProcessFrom identifies the exporting process by its OS pid. The host agent
// correlates spans with the processes it discovered through this pid.
func ProcessFrom() From {
	return From{EntityID: strconv.Itoa(os.Getpid())}
}

// ServerlessFrom identifies the exporting process by a random id generated once per
// process and marks it as hostless.
func ServerlessFrom(cloudProvider string) From {
	return From{
		EntityID:      instanceID(),
		Hostless:      true,
		CloudProvider: cloudProvider,
	}
}

// FromConfig picks the fingerprint for a configuration: an explicit entity id wins,
// a serverless endpoint selects ServerlessFrom, anything else uses the pid.
func FromConfig(cfg *Config) From {
	switch {
	case cfg.EntityID != "":
		return From{
			EntityID:      cfg.EntityID,
			Hostless:      cfg.EndpointURL != "",
			CloudProvider: cfg.CloudProvider,
		}
	case cfg.EndpointURL != "":
		return ServerlessFrom(cfg.CloudProvider)
	default:
		return ProcessFrom()
	}
}
