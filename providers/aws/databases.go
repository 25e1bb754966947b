package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	rdstypes "github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	redshifttypes "github.com/aws/aws-sdk-go-v2/service/redshift/types"

	"github.com/yairfalse/lfo/types"
)

func (p *Provider) listRDSInstances(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := rds.NewDescribeDBInstancesPaginator(p.rdsClient, &rds.DescribeDBInstancesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe RDS instances: %w", err)
		}

		for _, instance := range output.DBInstances {
			resources = append(resources, types.Resource{
				ID:     aws.ToString(instance.DBInstanceIdentifier),
				Kind:   KindRDS,
				Region: p.region,
				Name:   aws.ToString(instance.DBInstanceIdentifier),
				Tags:   convertRDSTags(instance.TagList),
			})
		}
	}
	return resources, nil
}

func convertRDSTags(tags []rdstypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		result[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return result
}

func (p *Provider) listDynamoDBTables(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := dynamodb.NewListTablesPaginator(p.dynamodbClient, &dynamodb.ListTablesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list DynamoDB tables: %w", err)
		}

		for _, table := range output.TableNames {
			resources = append(resources, types.Resource{
				ID:     table,
				Kind:   KindDynamoDB,
				Region: p.region,
				Name:   table,
				Tags:   p.dynamoDBTags(ctx, table),
			})
		}
	}
	return resources, nil
}

// dynamoDBTags fetches table tags; a tagging failure leaves the resource
// untagged rather than failing the listing.
func (p *Provider) dynamoDBTags(ctx context.Context, table string) map[string]string {
	describe, err := p.dynamodbClient.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil || describe.Table == nil {
		return nil
	}

	output, err := p.dynamodbClient.ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{
		ResourceArn: describe.Table.TableArn,
	})
	if err != nil || len(output.Tags) == 0 {
		return nil
	}

	result := make(map[string]string, len(output.Tags))
	for _, tag := range output.Tags {
		result[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return result
}

func (p *Provider) listRedshiftClusters(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := redshift.NewDescribeClustersPaginator(p.redshiftClient, &redshift.DescribeClustersInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe Redshift clusters: %w", err)
		}

		for _, cluster := range output.Clusters {
			resources = append(resources, types.Resource{
				ID:     aws.ToString(cluster.ClusterIdentifier),
				Kind:   KindRedshift,
				Region: p.region,
				Name:   aws.ToString(cluster.ClusterIdentifier),
				Tags:   convertRedshiftTags(cluster.Tags),
			})
		}
	}
	return resources, nil
}

func convertRedshiftTags(tags []redshifttypes.Tag) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		result[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return result
}

func (p *Provider) listMemoryDBClusters(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource

	input := &memorydb.DescribeClustersInput{}
	for {
		output, err := p.memorydbClient.DescribeClusters(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("failed to describe MemoryDB clusters: %w", err)
		}

		for _, cluster := range output.Clusters {
			resources = append(resources, types.Resource{
				ID:     aws.ToString(cluster.Name),
				Kind:   KindMemoryDB,
				Region: p.region,
				Name:   aws.ToString(cluster.Name),
				Tags:   p.memoryDBTags(ctx, aws.ToString(cluster.ARN)),
			})
		}

		if output.NextToken == nil {
			break
		}
		input.NextToken = output.NextToken
	}
	return resources, nil
}

func (p *Provider) memoryDBTags(ctx context.Context, arn string) map[string]string {
	output, err := p.memorydbClient.ListTags(ctx, &memorydb.ListTagsInput{
		ResourceArn: aws.String(arn),
	})
	if err != nil || len(output.TagList) == 0 {
		return nil
	}

	result := make(map[string]string, len(output.TagList))
	for _, tag := range output.TagList {
		result[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return result
}
