package instana_test

import (
	"os"
	"strconv"
	"testing"

	"github.com/JailtonJunior94/instana-exporter/pkg/instana"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestFromConfig(t *testing.T) {
	t.Run("host agent uses pid", func(t *testing.T) {
		from := instana.FromConfig(instana.DefaultConfig())

		assert.Equal(t, strconv.Itoa(os.Getpid()), from.EntityID)
		assert.False(t, from.Hostless)
	})

	t.Run("serverless uses a stable instance id", func(t *testing.T) {
		cfg := instana.DefaultConfig()
		cfg.EndpointURL = "https://acceptor.example.com"
		cfg.CloudProvider = "aws"

		first := instana.FromConfig(cfg)
		second := instana.FromConfig(cfg)

		_, err := uuid.Parse(first.EntityID)
		assert.NoError(t, err)
		assert.Equal(t, first.EntityID, second.EntityID)
		assert.True(t, first.Hostless)
		assert.Equal(t, "aws", first.CloudProvider)
	})

	t.Run("explicit entity id wins", func(t *testing.T) {
		cfg := instana.DefaultConfig()
		cfg.EntityID = "checkout-7f9c"

		assert.Equal(t, instana.From{EntityID: "checkout-7f9c"}, instana.FromConfig(cfg))
	})
}
