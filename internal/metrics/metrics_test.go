package metrics

import (
	"testing"
	"time"

	"github.com/funvibe/funledger/internal/diagnostics"
	"github.com/funvibe/funledger/internal/ledger"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveBlock(t *testing.T) {
	m := New()
	m.ObserveBlock(7, []ledger.Result{
		{Kind: "run", Status: ledger.Committed, ManaUsed: 40},
		{Kind: "run", Status: ledger.Rejected, ManaUsed: 2, Err: &diagnostics.Error{Kind: diagnostics.StuckTerm}},
		{Kind: "reg", Status: ledger.Committed},
	}, 3*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Statements.WithLabelValues("run", "committed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Statements.WithLabelValues("run", "rejected", "StuckTerm")))
	assert.Equal(t, 42.0, testutil.ToFloat64(m.Mana.WithLabelValues("run")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Height))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BlockTime))
}
