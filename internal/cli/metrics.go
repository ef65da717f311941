package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	goVolunteer "github.com/MrEthical07/goVolunteer"
	otelexport "github.com/MrEthical07/goVolunteer/metrics/export/otel"
	promexport "github.com/MrEthical07/goVolunteer/metrics/export/prometheus"
	"github.com/spf13/cobra"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newMetricsCommand(o *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "metrics [path...]",
		Short: "Restore the session, navigate the given paths, then print client metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := o.app
			app.Bootstrap(cmd.Context())
			for _, p := range args {
				app.Guard.Navigate(cmd.Context(), p)
			}

			switch format {
			case "prometheus":
				_, err := io.WriteString(cmd.OutOrStdout(), promexport.New(app.Store).Render())
				return err
			case "otel":
				return writeOTel(cmd.Context(), cmd.OutOrStdout(), app.Store)
			default:
				return fmt.Errorf("unknown format %q (want prometheus or otel)", format)
			}
		},
	}
	cmd.Flags().StringVar(&format, "format", "prometheus", "output format: prometheus or otel")
	return cmd
}

// writeOTel collects the store through the OpenTelemetry exporter once and
// prints one "name value" line per data point.
func writeOTel(ctx context.Context, w io.Writer, store *goVolunteer.Store) error {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	exp, err := otelexport.NewOTelExporter(provider.Meter("volunteerhub"), store)
	if err != nil {
		return err
	}
	defer exp.Close()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(ctx, &rm); err != nil {
		return err
	}

	values := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] += dp.Value
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					values[m.Name] += dp.Value
				}
			}
		}
	}

	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "%s %d\n", name, values[name]); err != nil {
			return err
		}
	}
	return nil
}
