package awsapi

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

// DescribeInstancesAPI is the slice of the EC2 API the instance requestor
// needs. *ec2.Client satisfies it.
type DescribeInstancesAPI interface {
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// DescribeSpotPriceHistoryAPI is the slice of the EC2 API the spot price
// requestor needs. *ec2.Client satisfies it.
type DescribeSpotPriceHistoryAPI interface {
	DescribeSpotPriceHistory(ctx context.Context, params *ec2.DescribeSpotPriceHistoryInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSpotPriceHistoryOutput, error)
}

// InstancesRequestor pages through the running instances of one region,
// implementing pagination.Requestor[types.Instance].
type InstancesRequestor struct {
	api   DescribeInstancesAPI
	input *ec2.DescribeInstancesInput
	first bool
}

// NewInstancesRequestor returns a requestor over all running instances.
// Stopped and terminated instances are filtered server-side; they are not
// fleet members. pageSize, when non-nil, caps the records per page.
func NewInstancesRequestor(api DescribeInstancesAPI, pageSize *int32) *InstancesRequestor {
	return &InstancesRequestor{
		api: api,
		input: &ec2.DescribeInstancesInput{
			Filters: []types.Filter{{
				Name:   aws.String("instance-state-name"),
				Values: []string{string(types.InstanceStateNameRunning)},
			}},
			MaxResults: pageSize,
		},
		first: true,
	}
}

// NextPage fetches the next page of instances, flattening the reservation
// grouping the API responds with. The first call always issues the request;
// afterwards an absent continuation token ends the stream.
func (r *InstancesRequestor) NextPage(ctx context.Context) ([]types.Instance, bool, error) {
	if !r.first && r.input.NextToken == nil {
		return nil, false, nil
	}
	r.first = false

	out, err := r.api.DescribeInstances(ctx, r.input)
	if err != nil {
		return nil, false, err
	}
	var page []types.Instance
	for _, reservation := range out.Reservations {
		page = append(page, reservation.Instances...)
	}
	r.input.NextToken = normalizeToken(out.NextToken)
	return page, true, nil
}

// SpotPriceFilters narrows a spot price query server-side. An empty slice
// leaves its dimension unfiltered.
type SpotPriceFilters struct {
	AvailabilityZones []string
	InstanceTypes     []string
	Products          []string
}

// SpotPricesRequestor pages through a region's spot price samples,
// implementing pagination.Requestor[types.SpotPrice].
type SpotPricesRequestor struct {
	api   DescribeSpotPriceHistoryAPI
	input *ec2.DescribeSpotPriceHistoryInput
	first bool
}

// NewSpotPricesRequestor returns a requestor over the spot prices in effect
// at the instant at. Start and end time are both pinned there, which makes
// the API return exactly the one current sample per zone, type and product
// combination instead of a history.
func NewSpotPricesRequestor(api DescribeSpotPriceHistoryAPI, filters SpotPriceFilters, pageSize *int32, at time.Time) *SpotPricesRequestor {
	input := &ec2.DescribeSpotPriceHistoryInput{
		StartTime:  aws.Time(at),
		EndTime:    aws.Time(at),
		MaxResults: pageSize,
	}
	if len(filters.AvailabilityZones) > 0 {
		input.Filters = append(input.Filters, types.Filter{
			Name:   aws.String("availability-zone"),
			Values: filters.AvailabilityZones,
		})
	}
	if len(filters.InstanceTypes) > 0 {
		input.Filters = append(input.Filters, types.Filter{
			Name:   aws.String("instance-type"),
			Values: filters.InstanceTypes,
		})
	}
	if len(filters.Products) > 0 {
		input.Filters = append(input.Filters, types.Filter{
			Name:   aws.String("product-description"),
			Values: filters.Products,
		})
	}
	return &SpotPricesRequestor{api: api, input: input, first: true}
}

// NextPage fetches the next page of price samples. This API signals
// exhaustion with an empty token rather than an absent one; both end the
// stream.
func (r *SpotPricesRequestor) NextPage(ctx context.Context) ([]types.SpotPrice, bool, error) {
	if !r.first && r.input.NextToken == nil {
		return nil, false, nil
	}
	r.first = false

	out, err := r.api.DescribeSpotPriceHistory(ctx, r.input)
	if err != nil {
		return nil, false, err
	}
	r.input.NextToken = normalizeToken(out.NextToken)
	return out.SpotPriceHistory, true, nil
}

// normalizeToken folds the API's two "no more pages" spellings, nil and empty
// string, into nil.
func normalizeToken(token *string) *string {
	if token == nil || *token == "" {
		return nil
	}
	return token
}
