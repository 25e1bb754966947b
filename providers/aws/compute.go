package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/lambda"

	"github.com/yairfalse/lfo/types"
)

func (p *Provider) listLambdaFunctions(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := lambda.NewListFunctionsPaginator(p.lambdaClient, &lambda.ListFunctionsInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list Lambda functions: %w", err)
		}

		for _, function := range output.Functions {
			resources = append(resources, types.Resource{
				ID:     aws.ToString(function.FunctionArn),
				Kind:   KindLambda,
				Region: p.region,
				Name:   aws.ToString(function.FunctionName),
				Tags:   p.lambdaTags(ctx, function.FunctionArn),
			})
		}
	}
	return resources, nil
}

func (p *Provider) lambdaTags(ctx context.Context, arn *string) map[string]string {
	output, err := p.lambdaClient.ListTags(ctx, &lambda.ListTagsInput{Resource: arn})
	if err != nil || len(output.Tags) == 0 {
		return nil
	}
	return output.Tags
}

func (p *Provider) listEKSClusters(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := eks.NewListClustersPaginator(p.eksClient, &eks.ListClustersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list EKS clusters: %w", err)
		}

		for _, name := range output.Clusters {
			describe, err := p.eksClient.DescribeCluster(ctx, &eks.DescribeClusterInput{
				Name: aws.String(name),
			})
			if err != nil || describe.Cluster == nil {
				// Listed but not describable: record it untagged so
				// diagnostics still sees the cluster.
				resources = append(resources, types.Resource{
					ID:     name,
					Kind:   KindEKS,
					Region: p.region,
					Name:   name,
				})
				continue
			}

			resources = append(resources, types.Resource{
				ID:     name,
				Kind:   KindEKS,
				Region: p.region,
				Name:   name,
				Tags:   describe.Cluster.Tags,
			})
		}
	}
	return resources, nil
}
