package watermark

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// drataWatermarkOpsTotal counts store operations by op ("load", "save",
// "reset") and result ("hit", "miss", "ok", "error").
var drataWatermarkOpsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "drata_watermark_ops_total",
		Help: "Total number of watermark store operations",
	},
	[]string{"op", "result"},
)
