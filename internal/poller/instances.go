package poller

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cloudpoll/ec2-fleet-exporter/internal/awsapi"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/logger"
	"github.com/cloudpoll/ec2-fleet-exporter/internal/pagination"
)

// instanceLabels are the fixed label names of the instance state family, in
// declaration order. Configured expose tags follow them.
var instanceLabels = []string{"id", "type", "platform", "lifecycle", "availability_zone"}

// Label values for attributes the API leaves unset on plain Linux on-demand
// instances.
const (
	defaultPlatform  = "linux"
	defaultLifecycle = "ondemand"
)

// InstanceSettings configures an InstancePoller.
type InstanceSettings struct {
	// ExposeTags lists tag keys exposed as extra labels, in label order.
	// Matching against instance tags is case-insensitive; a missing tag
	// yields an empty label value.
	ExposeTags []string
	// PageSize caps instances per DescribeInstances page when non-nil.
	PageSize *int32
}

// InstancePoller reconciles the aws_ec2_instance_state gauge family against
// DescribeInstances. Every running instance owns one series with value 1.
type InstancePoller struct {
	api        awsapi.DescribeInstancesAPI
	series     *gaugeSet
	errsTotal  *prometheus.CounterVec
	exposeTags []string
	pageSize   *int32
	logger     *logger.Logger
}

var _ Poller = (*InstancePoller)(nil)

// NewInstancePoller verifies API access with a dry-run describe, registers
// the gauge family on reg and returns the poller. Either step failing means
// no poller is built.
func NewInstancePoller(ctx context.Context, api awsapi.DescribeInstancesAPI, settings InstanceSettings, reg prometheus.Registerer, log *logger.Logger) (*InstancePoller, error) {
	labelNames := append(append([]string{}, instanceLabels...), settings.ExposeTags...)
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "aws_ec2_instance_state",
		Help: "Running EC2 instances as of the last completed poll, one series per instance.",
	}, labelNames)
	errsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aws_ec2_instance_poll_errors_total",
		Help: "Aborted instance polls since startup, by error kind.",
	}, []string{"kind"})

	p := &InstancePoller{
		api:        api,
		series:     newGaugeSet(vec, []string{"id"}),
		errsTotal:  errsTotal,
		exposeTags: settings.ExposeTags,
		pageSize:   settings.PageSize,
		logger:     log,
	}
	if err := p.verifyAccess(ctx); err != nil {
		return nil, err
	}
	if err := reg.Register(vec); err != nil {
		return nil, fmt.Errorf("registering instance gauge family: %w", err)
	}
	if err := reg.Register(errsTotal); err != nil {
		return nil, fmt.Errorf("registering instance error counter: %w", err)
	}
	return p, nil
}

// verifyAccess issues a dry-run describe. A DryRunOperation answer proves the
// real call would be authorized; anything else classified is a construction
// failure.
func (p *InstancePoller) verifyAccess(ctx context.Context) error {
	_, err := p.api.DescribeInstances(ctx, &ec2.DescribeInstancesInput{DryRun: aws.Bool(true)})
	if cerr := awsapi.Classify(awsapi.OpDescribeInstances, err); cerr != nil && cerr.Kind != awsapi.KindNoError {
		return cerr
	}
	return nil
}

// Name implements Poller.
func (p *InstancePoller) Name() string { return "instances" }

// Poll implements Poller. The pass streams all running instances, upserting
// each one's series and marking it seen, then deletes series whose instance
// was not seen. A failed fetch aborts before any deletion.
func (p *InstancePoller) Poll(ctx context.Context) error {
	stale, err := p.series.snapshot()
	if err != nil {
		p.errsTotal.WithLabelValues(awsapi.KindUnknown.String()).Inc()
		return err
	}

	it := pagination.NewIterator(awsapi.NewInstancesRequestor(p.api, p.pageSize))
	seen := 0
	skipped := 0
	for inst := range it.All(ctx) {
		id := aws.ToString(inst.InstanceId)
		if id == "" {
			// Without an id there is no identity to reconcile against.
			skipped++
			continue
		}
		delete(stale, id)
		seen++
		if err := p.series.upsert(p.labelsFor(inst), 1); err != nil {
			p.logger.Warn("Failed to update instance series", "id", id, "error", err)
		}
	}
	if err := it.Err(); err != nil {
		cerr := awsapi.Classify(awsapi.OpDescribeInstances, err)
		p.errsTotal.WithLabelValues(cerr.Kind.String()).Inc()
		return cerr
	}

	removed := 0
	for id, sets := range stale {
		removed += p.series.deleteAll(sets)
		p.logger.Info("Instance no longer running, removing series", "id", id)
	}
	p.logger.Debug("Instance poll complete", "instances", seen, "skipped", skipped, "removed", removed)
	return nil
}

// labelsFor builds the full label set of one instance.
func (p *InstancePoller) labelsFor(inst types.Instance) prometheus.Labels {
	labels := prometheus.Labels{
		"id":                aws.ToString(inst.InstanceId),
		"type":              string(inst.InstanceType),
		"platform":          defaultPlatform,
		"lifecycle":         defaultLifecycle,
		"availability_zone": "",
	}
	if inst.Platform != "" {
		labels["platform"] = string(inst.Platform)
	}
	if inst.InstanceLifecycle != "" {
		labels["lifecycle"] = string(inst.InstanceLifecycle)
	}
	if inst.Placement != nil {
		labels["availability_zone"] = aws.ToString(inst.Placement.AvailabilityZone)
	}
	for _, key := range p.exposeTags {
		labels[key] = tagValue(inst.Tags, key)
	}
	return labels
}

// tagValue returns the value of the named tag, matching the key
// case-insensitively. Absent tags read as empty.
func tagValue(tags []types.Tag, key string) string {
	for _, tag := range tags {
		if strings.EqualFold(aws.ToString(tag.Key), key) {
			return aws.ToString(tag.Value)
		}
	}
	return ""
}
