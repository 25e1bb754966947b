package aws

import (
	"context"
	"fmt"

	"github.com/yairfalse/lfo/types"
)

// kindLister lists one kind of AWS resource. Critical kinds fail the
// subscription's discovery; optional kinds only log a warning.
type kindLister struct {
	name     string
	critical bool
	list     func(p *Provider, ctx context.Context) ([]types.Resource, error)
}

func allListers() []kindLister {
	return []kindLister{
		// Critical kinds: a failure here means the inventory would be
		// misleading, so the whole subscription fails.
		{"ec2 instances", true, (*Provider).listEC2Instances},
		{"rds instances", true, (*Provider).listRDSInstances},
		{"load balancers", true, (*Provider).listLoadBalancers},

		// Optional kinds: log and continue.
		{"s3 buckets", false, (*Provider).listS3Buckets},
		{"lambda functions", false, (*Provider).listLambdaFunctions},
		{"sqs queues", false, (*Provider).listSQSQueues},
		{"eks clusters", false, (*Provider).listEKSClusters},
		{"dynamodb tables", false, (*Provider).listDynamoDBTables},
		{"redshift clusters", false, (*Provider).listRedshiftClusters},
		{"memorydb clusters", false, (*Provider).listMemoryDBClusters},
		{"route53 zones", false, (*Provider).listHostedZones},
		{"ecr repositories", false, (*Provider).listECRRepositories},
	}
}

// ListResources enumerates all supported resource kinds and stamps them
// with the subscription they belong to. Tag filtering happens in the
// discovery task, not here: discovery owns the scope decision.
func (p *Provider) ListResources(ctx context.Context, subscription string) ([]types.Resource, error) {
	var all []types.Resource
	var criticalErrs []error

	for _, lister := range p.listers {
		resources, err := lister.list(p, ctx)
		if err != nil {
			if lister.critical {
				criticalErrs = append(criticalErrs, fmt.Errorf("%s: %w", lister.name, err))
				continue
			}
			p.logger.WithContext(ctx).Warn().
				Err(err).
				Str("kind", lister.name).
				Str("subscription", subscription).
				Msg("failed to list optional resource kind")
			continue
		}
		for i := range resources {
			resources[i].Subscription = subscription
		}
		all = append(all, resources...)
	}

	if len(criticalErrs) > 0 {
		return nil, fmt.Errorf("listing failed: %v", criticalErrs)
	}
	return all, nil
}
