package agent

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/agentloop/internal/schema"
)

func TestToolRegistryRegisterAndGet(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(weatherTool())

	tool, ok := reg.Get("weather")
	require.True(t, ok)
	assert.Equal(t, "Get the current weather for a city", tool.Description)

	_, ok = reg.Get("nope")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestToolRegistryLastWriteWins(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(Tool{Name: "t", Description: "first"})
	reg.Register(Tool{Name: "t", Description: "second"})

	tool, ok := reg.Get("t")
	require.True(t, ok)
	assert.Equal(t, "second", tool.Description)
	assert.Equal(t, 1, reg.Len())
}

func TestToolRegistrySnapshotIsolation(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(upperTool())

	snap := reg.Snapshot()
	reg.Register(weatherTool())
	reg.Register(Tool{Name: "upper", Description: "replaced"})

	assert.Equal(t, []string{"upper"}, snap.Names())
	assert.Empty(t, snap["upper"].Description)
	assert.Equal(t, []string{"upper", "weather"}, reg.Names())
}

func TestToolSetDefinitions(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(weatherTool())
	reg.Register(upperTool())

	defs := reg.Snapshot().Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "upper", defs[0].Name)
	assert.Equal(t, "weather", defs[1].Name)
	assert.Equal(t, "object", defs[1].Parameters["type"])
	assert.Equal(t, []string{"city"}, defs[1].Parameters["required"])
}

func TestToolDefinitionNilParameters(t *testing.T) {
	def := Tool{Name: "noop"}.Definition()
	assert.Equal(t, "noop", def.Name)
}

func TestToolRegistryConcurrent(t *testing.T) {
	reg := NewToolRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			reg.Register(Tool{
				Name:       fmt.Sprintf("tool%d", i),
				Parameters: schema.Object(),
				Execute: func(context.Context, map[string]any) (ToolResult, error) {
					return ToolResult{}, nil
				},
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = reg.Snapshot()
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, reg.Len())
}
