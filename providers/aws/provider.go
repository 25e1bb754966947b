// Package aws implements the provider contracts on AWS. Monitored
// subscriptions map to AWS accounts; log routing is a CloudWatch Logs
// subscription filter; forwarder units are ECS services.
package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	"github.com/aws/aws-sdk-go-v2/service/eks"
	"github.com/aws/aws-sdk-go-v2/service/elasticloadbalancingv2"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/memorydb"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/redshift"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/yairfalse/lfo/providers"
	"github.com/yairfalse/lfo/telemetry"
)

func init() {
	providers.Register("aws", NewFactory)
}

// Options beyond the generic provider config.
type Options struct {
	// RouteName names the subscription filters owned by this control
	// plane; derived from the control-plane identity.
	RouteName string
	// Cluster is the ECS cluster hosting forwarder services.
	Cluster string
	// ExecutionRoleARN is attached to forwarder task definitions.
	ExecutionRoleARN string
}

// Provider bundles the AWS clients behind the three provider contracts.
type Provider struct {
	region  string
	opts    Options
	listers []kindLister
	logger  *telemetry.Logger

	ec2Client      *ec2.Client
	rdsClient      *rds.Client
	s3Client       *s3.Client
	lambdaClient   *lambda.Client
	sqsClient      *sqs.Client
	elbv2Client    *elasticloadbalancingv2.Client
	eksClient      *eks.Client
	dynamodbClient *dynamodb.Client
	redshiftClient *redshift.Client
	memorydbClient *memorydb.Client
	route53Client  *route53.Client
	ecrClient      *ecr.Client
	cwLogsClient   *cloudwatchlogs.Client
	ecsClient      *ecs.Client

	router  *LogRouter
	runtime *ForwarderRuntime
}

// NewFactory adapts NewProvider to the generic factory signature.
func NewFactory(ctx context.Context, cfg providers.Config) (providers.Bundle, error) {
	return NewProvider(ctx, cfg, Options{
		RouteName:        cfg.RouteName,
		Cluster:          cfg.Cluster,
		ExecutionRoleARN: cfg.ExecutionRole,
	})
}

// NewProvider creates an AWS provider using the default credential chain.
func NewProvider(ctx context.Context, cfg providers.Config, opts Options) (*Provider, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	p := &Provider{
		region:         cfg.Region,
		opts:           opts,
		logger:         telemetry.NewLogger("aws-provider"),
		ec2Client:      ec2.NewFromConfig(awsCfg),
		rdsClient:      rds.NewFromConfig(awsCfg),
		s3Client:       s3.NewFromConfig(awsCfg),
		lambdaClient:   lambda.NewFromConfig(awsCfg),
		sqsClient:      sqs.NewFromConfig(awsCfg),
		elbv2Client:    elasticloadbalancingv2.NewFromConfig(awsCfg),
		eksClient:      eks.NewFromConfig(awsCfg),
		dynamodbClient: dynamodb.NewFromConfig(awsCfg),
		redshiftClient: redshift.NewFromConfig(awsCfg),
		memorydbClient: memorydb.NewFromConfig(awsCfg),
		route53Client:  route53.NewFromConfig(awsCfg),
		ecrClient:      ecr.NewFromConfig(awsCfg),
		cwLogsClient:   cloudwatchlogs.NewFromConfig(awsCfg),
		ecsClient:      ecs.NewFromConfig(awsCfg),
	}
	p.listers = allListers()
	p.router = &LogRouter{
		logs:        p.cwLogsClient,
		routeName:   opts.RouteName,
		destination: cfg.Destination,
	}
	p.runtime = &ForwarderRuntime{
		ecs:              p.ecsClient,
		cluster:          opts.Cluster,
		executionRoleARN: opts.ExecutionRoleARN,
	}
	return p, nil
}

// Lister returns the resource-listing contract.
func (p *Provider) Lister() providers.ResourceLister { return p }

// Router returns the log-routing contract.
func (p *Provider) Router() providers.LogRouter { return p.router }

// Runtime returns the forwarder compute contract.
func (p *Provider) Runtime() providers.ForwarderRuntime { return p.runtime }

// Region returns the configured region.
func (p *Provider) Region() string { return p.region }
