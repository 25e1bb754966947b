package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/lfo/types"
)

func (p *Provider) listS3Buckets(ctx context.Context) ([]types.Resource, error) {
	// S3 bucket listing is account-global; filter to our region.
	output, err := p.s3Client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to list S3 buckets: %w", err)
	}

	var resources []types.Resource
	for _, bucket := range output.Buckets {
		name := aws.ToString(bucket.Name)
		if p.bucketRegion(ctx, name) != p.region {
			continue
		}
		resources = append(resources, types.Resource{
			ID:     name,
			Kind:   KindS3,
			Region: p.region,
			Name:   name,
			Tags:   p.bucketTags(ctx, name),
		})
	}
	return resources, nil
}

func (p *Provider) bucketRegion(ctx context.Context, bucket string) string {
	output, err := p.s3Client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return ""
	}
	// An empty location constraint means us-east-1.
	if output.LocationConstraint == "" {
		return "us-east-1"
	}
	return string(output.LocationConstraint)
}

func (p *Provider) bucketTags(ctx context.Context, bucket string) map[string]string {
	output, err := p.s3Client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
		Bucket: aws.String(bucket),
	})
	if err != nil || len(output.TagSet) == 0 {
		return nil
	}
	return convertS3Tags(output.TagSet)
}

func convertS3Tags(tags []s3types.Tag) map[string]string {
	result := make(map[string]string, len(tags))
	for _, tag := range tags {
		result[aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return result
}

func (p *Provider) listSQSQueues(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := sqs.NewListQueuesPaginator(p.sqsClient, &sqs.ListQueuesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list SQS queues: %w", err)
		}

		for _, url := range output.QueueUrls {
			resources = append(resources, types.Resource{
				ID:     url,
				Kind:   KindSQS,
				Region: p.region,
				Name:   queueNameFromURL(url),
				Tags:   p.queueTags(ctx, url),
			})
		}
	}
	return resources, nil
}

func (p *Provider) queueTags(ctx context.Context, url string) map[string]string {
	output, err := p.sqsClient.ListQueueTags(ctx, &sqs.ListQueueTagsInput{
		QueueUrl: aws.String(url),
	})
	if err != nil || len(output.Tags) == 0 {
		return nil
	}
	return output.Tags
}

func queueNameFromURL(url string) string {
	for i := len(url) - 1; i >= 0; i-- {
		if url[i] == '/' {
			return url[i+1:]
		}
	}
	return url
}

func (p *Provider) listECRRepositories(ctx context.Context) ([]types.Resource, error) {
	var resources []types.Resource
	paginator := ecr.NewDescribeRepositoriesPaginator(p.ecrClient, &ecr.DescribeRepositoriesInput{})

	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe ECR repositories: %w", err)
		}

		for _, repo := range output.Repositories {
			resources = append(resources, types.Resource{
				ID:     aws.ToString(repo.RepositoryArn),
				Kind:   KindECR,
				Region: p.region,
				Name:   aws.ToString(repo.RepositoryName),
				Tags:   p.ecrTags(ctx, repo.RepositoryArn),
			})
		}
	}
	return resources, nil
}

func (p *Provider) ecrTags(ctx context.Context, arn *string) map[string]string {
	output, err := p.ecrClient.ListTagsForResource(ctx, &ecr.ListTagsForResourceInput{
		ResourceArn: arn,
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
