// Package awsapi wraps EC2 API access for the exporter.
//
// It provides three things:
//
//   - Client construction: NewClient builds an authenticated *ec2.Client for
//     one region from a Settings value, supporting the default credential
//     chain plus explicit environment, shared profile, instance role and
//     container strategies. Construction validates the region shape and
//     performs one credential fetch up front, so misconfiguration surfaces at
//     startup rather than on the first poll.
//
//   - Requestors: InstancesRequestor and SpotPricesRequestor adapt the
//     paginated DescribeInstances and DescribeSpotPriceHistory calls to the
//     pagination.Requestor interface, handling continuation tokens and
//     server-side filters.
//
//   - Classification: Classify folds the SDK's error values into the small
//     Kind taxonomy the pollers act on (credentials, permissions, region,
//     network, everything else).
package awsapi
