package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	require.NotNil(t, c)

	c.RuleApplied("eat", "applied")
	c.RuleApplied("eat", "violated")
	c.RuleApplied("eat", "violated")
	c.ConstraintViolated("eaten1", "eaten2")
	c.ConstraintViolated("eaten1")
	c.SetWorldFacts(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ruleApplications.WithLabelValues("eat", "applied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.ruleApplications.WithLabelValues("eat", "violated")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.constraintViolations.WithLabelValues("eaten1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.constraintViolations.WithLabelValues("eaten2")))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.worldFacts))
}

func TestNilCollector(t *testing.T) {
	c := New(nil)
	assert.Nil(t, c)

	assert.NotPanics(t, func() {
		c.RuleApplied("eat", "applied")
		c.ConstraintViolated("eaten1")
		c.SetWorldFacts(1)
	})
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.RuleApplied("put", "not_fired")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ifkit_rule_applications_total{outcome="not_fired",rule="put"} 1`)
	assert.Contains(t, string(body), "ifkit_world_facts 0")
}
