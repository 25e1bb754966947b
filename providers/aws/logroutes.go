package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"

	"github.com/yairfalse/lfo/providers"
	"github.com/yairfalse/lfo/types"
)

// LogRouter reconciles CloudWatch Logs subscription filters: the
// AWS-native way to route a resource's logs to a forwarder destination.
type LogRouter struct {
	logs        *cloudwatchlogs.Client
	routeName   string
	destination string
}

// logGroupForResource maps a resource to the log group its service
// writes. Only kinds with a well-known log group layout are routable.
func logGroupForResource(res types.Resource) (string, bool) {
	switch res.Kind {
	case KindLambda:
		return "/aws/lambda/" + res.Name, true
	case KindRDS:
		return "/aws/rds/instance/" + res.Name + "/error", true
	case KindEKS:
		return "/aws/eks/" + res.Name + "/cluster", true
	case KindRoute53:
		return "/aws/route53/" + res.Name, true
	default:
		return "", false
	}
}

// GetRoute returns the control plane's subscription filter on the
// resource's log group, or nil when none exists.
func (r *LogRouter) GetRoute(ctx context.Context, res types.Resource) (*providers.LogRoute, error) {
	group, ok := logGroupForResource(res)
	if !ok {
		return nil, fmt.Errorf("no log group mapping for kind %s", res.Kind)
	}

	output, err := r.logs.DescribeSubscriptionFilters(ctx, &cloudwatchlogs.DescribeSubscriptionFiltersInput{
		LogGroupName:     aws.String(group),
		FilterNamePrefix: aws.String(r.routeName),
	})
	if err != nil {
		// A missing log group means the service has not written logs
		// yet; the route is simply absent.
		var notFound *cwltypes.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to describe subscription filters for %s: %w", group, err)
	}

	for _, filter := range output.SubscriptionFilters {
		if aws.ToString(filter.FilterName) == r.routeName {
			return &providers.LogRoute{
				Name:        r.routeName,
				Destination: aws.ToString(filter.DestinationArn),
			}, nil
		}
	}
	return nil, nil
}

// EnsureRoute puts the subscription filter. PutSubscriptionFilter
// overwrites a same-named filter, so re-applying is idempotent.
func (r *LogRouter) EnsureRoute(ctx context.Context, res types.Resource, destination string) error {
	group, ok := logGroupForResource(res)
	if !ok {
		return fmt.Errorf("no log group mapping for kind %s", res.Kind)
	}
	if destination == "" {
		destination = r.destination
	}

	_, err := r.logs.PutSubscriptionFilter(ctx, &cloudwatchlogs.PutSubscriptionFilterInput{
		LogGroupName:   aws.String(group),
		FilterName:     aws.String(r.routeName),
		FilterPattern:  aws.String(""),
		DestinationArn: aws.String(destination),
	})
	if err != nil {
		return fmt.Errorf("failed to put subscription filter on %s: %w", group, err)
	}
	return nil
}
