package aws

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	elbv2types "github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	route53types "github.com/aws/aws-sdk-go-v2/service/route53/types"

	"github.com/yairfalse/lfo/types"
)

func (p *Provider) listLoadBalancers(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := elasticloadbalancingv2.NewDescribeLoadBalancersPaginator(
		p.elbv2Client, &elasticloadbalancingv2.DescribeLoadBalancersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe load balancers: %w", err)
		}

		for _, lb := range output.LoadBalancers {
			resources = append(resources, types.Resource{
				ID:     aws.ToString(lb.LoadBalancerArn),
				Kind:   KindELB,
				Region: p.region,
				Name:   aws.ToString(lb.LoadBalancerName),
				Tags:   p.elbTags(ctx, aws.ToString(lb.LoadBalancerArn)),
			})
		}
	}
	return resources, nil
}

func (p *Provider) elbTags(ctx context.Context, arn string) map[string]string {
	output, err := p.elbv2Client.DescribeTags(ctx, &elasticloadbalancingv2.DescribeTagsInput{
		ResourceArns: []string{arn},
	})
	if err != nil || len(output.TagDescriptions) == 0 {
		return nil
	}
	return convertELBTags(output.TagDescriptions[0].Tags)
}

func convertELBTags(tags []elbv2types.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		result[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return result
}

func (p *Provider) listHostedZones(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := route53.NewListHostedZonesPaginator(p.route53Client, &route53.ListHostedZonesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list hosted zones: %w", err)
		}

		for _, zone := range output.HostedZones {
			// Zone IDs come back as "/hostedzone/Z123...".
			id := strings.TrimPrefix(aws.ToString(zone.Id), "/hostedzone/")
			resources = append(resources, types.Resource{
				ID: id,
				// Route 53 is a global service; query logs land in
				// us-east-1 by definition.
				Kind:   KindRoute53,
				Region: "us-east-1",
				Name:   aws.ToString(zone.Name),
				Tags:   p.zoneTags(ctx, id),
			})
		}
	}
	return resources, nil
}

func (p *Provider) zoneTags(ctx context.Context, zoneID string) map[string]string {
	output, err := p.route53Client.ListTagsForResource(ctx, &route53.ListTagsForResourceInput{
		ResourceType: route53types.TagResourceTypeHostedzone,
		ResourceId:   aws.String(zoneID),
	})
	if err != nil || output.ResourceTagSet == nil || len(output.ResourceTagSet.Tags) == 0 {
		return nil
	}

	result := make(map[string]string, len(output.ResourceTagSet.Tags))
	for _, tag := range output.ResourceTagSet.Tags {
		result[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return result
}
