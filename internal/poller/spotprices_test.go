package poller

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/awsapi"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/clock"
)

// fakeSpotAPI serves DescribeSpotPriceHistory from scripted pages and answers
// dry-run probes the way the real API does.
type fakeSpotAPI struct {
	pages     [][]types.SpotPrice
	errAt     int
	err       error
	calls     int
	lastInput *ec2.DescribeSpotPriceHistoryInput
}

func (f *fakeSpotAPI) DescribeSpotPriceHistory(_ context.Context, params *ec2.DescribeSpotPriceHistoryInput, _ ...func(*ec2.Options)) (*ec2.DescribeSpotPriceHistoryOutput, error) {
	if aws.ToBool(params.DryRun) {
		return nil, dryRunRefusal()
	}
	f.calls++
	f.lastInput = params
	if f.errAt != 0 && f.calls == f.errAt {
		return nil, f.err
	}
	out := &ec2.DescribeSpotPriceHistoryOutput{SpotPriceHistory: f.pages[f.calls-1]}
	if f.calls < len(f.pages) {
		out.NextToken = aws.String("more")
	}
	return out, nil
}

func spotSample(zone, instanceType, product, price string) types.SpotPrice {
	return types.SpotPrice{
		AvailabilityZone:   aws.String(zone),
		InstanceType:       types.InstanceType(instanceType),
		ProductDescription: types.RIProductDescription(product),
		SpotPrice:          aws.String(price),
	}
}

func spotLabelsFor(zone, instanceType, product string) prometheus.Labels {
	return prometheus.Labels{
		"availability_zone": zone,
		"instance_type":     instanceType,
		"product":           product,
	}
}

func newSpotPollerForTest(t *testing.T, api awsapi.DescribeSpotPriceHistoryAPI, settings SpotPriceSettings) *SpotPricePoller {
	t.Helper()
	p, err := NewSpotPricePoller(context.Background(), api, settings, prometheus.NewRegistry(), testLogger())
	if err != nil {
		t.Fatalf("NewSpotPricePoller() error = %v, want nil", err)
	}
	return p
}

func TestNewSpotPricePoller_DryRunAccepted(t *testing.T) {
	newSpotPollerForTest(t, &fakeSpotAPI{}, SpotPriceSettings{})
}

func TestNewSpotPricePoller_NetworkProbeFails(t *testing.T) {
	api := describeSpotPricesFunc(func(_ context.Context, _ *ec2.DescribeSpotPriceHistoryInput, _ ...func(*ec2.Options)) (*ec2.DescribeSpotPriceHistoryOutput, error) {
		return nil, &net.DNSError{Err: "no such host", Name: "ec2.eu-west-1.amazonaws.com"}
	})

	_, err := NewSpotPricePoller(context.Background(), api, SpotPriceSettings{}, prometheus.NewRegistry(), testLogger())
	var classified *awsapi.Error
	if !errors.As(err, &classified) || classified.Kind != awsapi.KindNetwork {
		t.Fatalf("NewSpotPricePoller() error = %v, want KindNetwork", err)
	}
}

// describeSpotPricesFunc adapts a function to awsapi.DescribeSpotPriceHistoryAPI.
type describeSpotPricesFunc func(ctx context.Context, params *ec2.DescribeSpotPriceHistoryInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotPriceHistoryOutput, error)

func (f describeSpotPricesFunc) DescribeSpotPriceHistory(ctx context.Context, params *ec2.DescribeSpotPriceHistoryInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotPriceHistoryOutput, error) {
	return f(ctx, params, optFns...)
}

func TestSpotPricePoller_Poll_ExposesParsedPrices(t *testing.T) {
	p := newSpotPollerForTest(t, &fakeSpotAPI{
		pages: [][]types.SpotPrice{{
			spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "0.0415"),
			spotSample("eu-west-1b", "m5.large", "Linux/UNIX", "0.0532"),
		}},
	}, SpotPriceSettings{})

	mustPoll(t, p)

	labels := spotLabelsFor("eu-west-1a", "m5.large", "Linux/UNIX")
	if got := gaugeValue(t, p.series, labels); got != 0.0415 {
		t.Errorf("series value = %v, want 0.0415", got)
	}
	snap, err := p.series.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap) != 2 {
		t.Errorf("snapshot() has %d identities, want 2", len(snap))
	}
}

func TestSpotPricePoller_Poll_QueryWindowUsesPollerClock(t *testing.T) {
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeSpotAPI{pages: [][]types.SpotPrice{{}}}
	p := newSpotPollerForTest(t, api, SpotPriceSettings{})
	p.clock = clock.Fixed{T: at}

	mustPoll(t, p)

	if api.lastInput == nil {
		t.Fatal("API never received a data request")
	}
	if !aws.ToTime(api.lastInput.StartTime).Equal(at) || !aws.ToTime(api.lastInput.EndTime).Equal(at) {
		t.Errorf("window = [%v, %v], want both %v",
			aws.ToTime(api.lastInput.StartTime), aws.ToTime(api.lastInput.EndTime), at)
	}
}

func TestSpotPricePoller_Poll_PriceUpdatesInPlace(t *testing.T) {
	p := newSpotPollerForTest(t, &fakeSpotAPI{
		pages: [][]types.SpotPrice{{spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "0.0415")}},
	}, SpotPriceSettings{})
	mustPoll(t, p)

	p.api = &fakeSpotAPI{
		pages: [][]types.SpotPrice{{spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "0.0388")}},
	}
	mustPoll(t, p)

	labels := spotLabelsFor("eu-west-1a", "m5.large", "Linux/UNIX")
	if got := gaugeValue(t, p.series, labels); got != 0.0388 {
		t.Errorf("series value = %v, want 0.0388", got)
	}
	snap, err := p.series.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap) != 1 {
		t.Errorf("snapshot() has %d identities, want 1", len(snap))
	}
}

func TestSpotPricePoller_Poll_RemovesUnquotedSeries(t *testing.T) {
	p := newSpotPollerForTest(t, &fakeSpotAPI{
		pages: [][]types.SpotPrice{{
			spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "0.0415"),
			spotSample("eu-west-1a", "m5.xlarge", "Linux/UNIX", "0.0831"),
		}},
	}, SpotPriceSettings{})
	mustPoll(t, p)

	p.api = &fakeSpotAPI{
		pages: [][]types.SpotPrice{{spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "0.0415")}},
	}
	mustPoll(t, p)

	snap, err := p.series.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("snapshot() has %d identities, want 1", len(snap))
	}
	gone := p.series.key(spotLabelsFor("eu-west-1a", "m5.xlarge", "Linux/UNIX"))
	if _, ok := snap[gone]; ok {
		t.Error("unquoted m5.xlarge series still exposed")
	}
}

func TestSpotPricePoller_Poll_AbortKeepsEverySeries(t *testing.T) {
	p := newSpotPollerForTest(t, &fakeSpotAPI{
		pages: [][]types.SpotPrice{{
			spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "0.0415"),
			spotSample("eu-west-1b", "m5.large", "Linux/UNIX", "0.0532"),
		}},
	}, SpotPriceSettings{})
	mustPoll(t, p)

	p.api = &fakeSpotAPI{errAt: 1, err: errors.New("connection reset")}
	err := p.Poll(context.Background())
	if err == nil {
		t.Fatal("Poll() error = nil, want abort")
	}

	snap, serr := p.series.snapshot()
	if serr != nil {
		t.Fatalf("snapshot() error = %v", serr)
	}
	if len(snap) != 2 {
		t.Errorf("snapshot() has %d identities after abort, want 2", len(snap))
	}
	if got := counterValue(t, p.errsTotal, awsapi.KindUnknown.String()); got != 1 {
		t.Errorf("poll error counter = %v, want 1", got)
	}
}

func TestSpotPricePoller_Poll_UnparsablePriceKeepsPreviousValue(t *testing.T) {
	p := newSpotPollerForTest(t, &fakeSpotAPI{
		pages: [][]types.SpotPrice{{spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "0.0415")}},
	}, SpotPriceSettings{})
	mustPoll(t, p)

	p.api = &fakeSpotAPI{
		pages: [][]types.SpotPrice{{spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "not-a-number")}},
	}
	mustPoll(t, p)

	// Identity was seen, so the series survives with its last good value.
	labels := spotLabelsFor("eu-west-1a", "m5.large", "Linux/UNIX")
	if got := gaugeValue(t, p.series, labels); got != 0.0415 {
		t.Errorf("series value = %v, want previous 0.0415", got)
	}
}

func TestSpotPricePoller_Poll_UnparsablePriceNeverCreatesSeries(t *testing.T) {
	p := newSpotPollerForTest(t, &fakeSpotAPI{
		pages: [][]types.SpotPrice{{spotSample("eu-west-1a", "m5.large", "Linux/UNIX", "garbage")}},
	}, SpotPriceSettings{})

	mustPoll(t, p)

	snap, err := p.series.snapshot()
	if err != nil {
		t.Fatalf("snapshot() error = %v", err)
	}
	if len(snap) != 0 {
		t.Errorf("snapshot() = %v, want empty", snap)
	}
}

func TestSpotPricePoller_Poll_FiltersReachTheAPI(t *testing.T) {
	api := &fakeSpotAPI{pages: [][]types.SpotPrice{{}}}
	p := newSpotPollerForTest(t, api, SpotPriceSettings{
		AvailabilityZones: []string{"eu-west-1a"},
		InstanceTypes:     []string{"m5.large"},
		Products:          []string{"Linux/UNIX"},
	})

	mustPoll(t, p)

	if api.lastInput == nil {
		t.Fatal("API never received a data request")
	}
	if len(api.lastInput.Filters) != 3 {
		t.Errorf("request carried %d filters, want 3", len(api.lastInput.Filters))
	}
}
