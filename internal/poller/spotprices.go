package poller

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/awsapi"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/clock"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/logger"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/pagination"
)

// spotLabels are the label names of the spot price family. All three together
// form the series identity.
var spotLabels = []string{"availability_zone", "instance_type", "product"}

// SpotPriceSettings configures a SpotPricePoller. Empty filter slices leave
// that dimension unfiltered.
type SpotPriceSettings struct {
	AvailabilityZones []string
	InstanceTypes     []string
	Products          []string
	// PageSize caps samples per DescribeSpotPriceHistory page when non-nil.
	PageSize *int32
}

// SpotPricePoller reconciles the aws_ec2_spot_price gauge family against
// DescribeSpotPriceHistory. The gauge value is the current price in USD per
// hour.
type SpotPricePoller struct {
	api       awsapi.DescribeSpotPriceHistoryAPI
	series    *gaugeSet
	errsTotal *prometheus.CounterVec
	filters   awsapi.SpotPriceFilters
	pageSize  *int32
	clock     clock.Clock
	logger    *logger.Logger
}

var _ Poller = (*SpotPricePoller)(nil)

// NewSpotPricePoller verifies API access with a dry-run query, registers the
// gauge family on reg and returns the poller. Either step failing means no
// poller is built.
func NewSpotPricePoller(ctx context.Context, api awsapi.DescribeSpotPriceHistoryAPI, settings SpotPriceSettings, reg prometheus.Registerer, log *logger.Logger) (*SpotPricePoller, error) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aws_ec2_spot_price",
		Help: "Current spot price in USD per hour as of the last completed poll.",
	}, spotLabels)
	errsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aws_ec2_spot_price_poll_errors_total",
		Help: "Aborted spot price polls since startup, by error kind.",
	}, []string{"kind"})

	p := &SpotPricePoller{
		api:       api,
		series:    newGaugeSet(vec, spotLabels),
		errsTotal: errsTotal,
		filters: awsapi.SpotPriceFilters{
			AvailabilityZones: settings.AvailabilityZones,
			InstanceTypes:     settings.InstanceTypes,
			Products:          settings.Products,
		},
		pageSize: settings.PageSize,
		clock:    clock.RealClock{},
		logger:   log,
	}
	if err := p.verifyAccess(ctx); err != nil {
		return nil, err
	}
	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("registering spot price gauge family: %w", err)
	}
	if err := reg.Register(errsTotal); err != nil {
		return nil, fmt.Errorf("registering spot price error counter: %w", err)
	}
	return p, nil
}

func (p *SpotPricePoller) verifyAccess(ctx context.Context) error {
	_, err := p.api.DescribeSpotPriceHistory(ctx, &ec2.DescribeSpotPriceHistoryInput{DryRun: aws.Bool(true)})
	if cerr := awsapi.Classify(awsapi.OpDescribeSpotPriceHistory, err); cerr != nil && cerr.Kind != awsapi.KindNoError {
		return cerr
	}
	return nil
}

// Name implements Poller.
func (p *SpotPricePoller) Name() string { return "spot_prices" }

// Poll implements Poller. Same pass discipline as the instance poller, with
// the price itself as the gauge value. A sample whose price does not parse
// still marks its identity seen; the previous value simply survives until a
// later pass can replace it.
func (p *SpotPricePoller) Poll(ctx context.Context) error {
	stale, err := p.series.snapshot()
	if err != nil {
		p.errsTotal.WithLabelValues(awsapi.KindUnknown.String()).Inc()
		return err
	}

	requestor := awsapi.NewSpotPricesRequestor(p.api, p.filters, p.pageSize, p.clock.Now())
	it := pagination.NewIterator(requestor)
	seen := 0
	skipped := 0
	for sample := range it.All(ctx) {
		labels := prometheus.Labels{
			"availability_zone": aws.ToString(sample.AvailabilityZone),
			"instance_type":     string(sample.InstanceType),
			"product":           string(sample.ProductDescription),
		}
		delete(stale, p.series.key(labels))
		seen++

		price, err := strconv.ParseFloat(aws.ToString(sample.SpotPrice), 64)
		if err != nil {
			p.logger.Warn("Skipping spot price sample with unparsable price",
				"availability_zone", labels["availability_zone"],
				"instance_type", labels["instance_type"],
				"product", labels["product"],
				"price", aws.ToString(sample.SpotPrice))
			skipped++
			continue
		}
		if err := p.series.upsert(labels, price); err != nil {
			p.logger.Warn("Failed to update spot price series", "error", err)
		}
	}
	if err := it.Err(); err != nil {
		cerr := awsapi.Classify(awsapi.OpDescribeSpotPriceHistory, err)
		p.errsTotal.WithLabelValues(cerr.Kind.String()).Inc()
		return cerr
	}

	removed := 0
	for _, sets := range stale {
		removed += p.series.deleteAll(sets)
	}
	if removed > 0 {
		p.logger.Info("Spot price series no longer quoted, removed", "series", removed)
	}
	p.logger.Debug("Spot price poll complete", "samples", seen, "skipped", skipped, "removed", removed)
	return nil
}
