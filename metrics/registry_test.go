package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/flowbridge/flowdecode/decoders/netflow"
	"github.com/flowbridge/flowdecode/exporter"
	"github.com/flowbridge/flowdecode/state"
)

func TestPromRegistryCountsNewAndRedefined(t *testing.T) {
	base := state.NewRegistry()
	reg := NewPromRegistry(base)
	key := exporter.Key{Addr: "203.0.113.1", DomainID: 0}
	sys := reg.SystemFor(key)

	tmpl := &netflow.Template{ID: 260, Fields: []netflow.FieldSpec{{ElementID: 8, Length: 4}}}
	require.True(t, sys.Put(260, tmpl))
	require.Equal(t, float64(1), testutil.ToFloat64(TemplatesInstalled.WithLabelValues(key.String(), "new")))

	redefined := &netflow.Template{ID: 260, Fields: []netflow.FieldSpec{{ElementID: 8, Length: 4}, {ElementID: 12, Length: 4}}}
	require.True(t, sys.Put(260, redefined))
	require.Equal(t, float64(1), testutil.ToFloat64(TemplatesInstalled.WithLabelValues(key.String(), "redefined")))

	// Re-putting the identical shape doesn't change anything, and isn't counted again.
	require.False(t, sys.Put(260, redefined))
	require.Equal(t, float64(1), testutil.ToFloat64(TemplatesInstalled.WithLabelValues(key.String(), "redefined")))
}
