package aws

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecs"
	ecstypes "github.com/aws/aws-sdk-go-v2/service/ecs/types"

	"github.com/yairfalse/lfo/providers"
)

// Tag keys recording unit metadata on ECS services. The deployer reads
// them back to detect drift without inspecting task definitions.
const (
	tagSourceRegion = "lfo:source-region"
	tagConfigID     = "lfo:config-id"
)

// ForwarderRuntime runs forwarder units as ECS services in one cluster.
// A unit's Region is the source region whose logs it drains, not where
// the service runs.
type ForwarderRuntime struct {
	ecs              *ecs.Client
	cluster          string
	executionRoleARN string
}

// ListUnits returns all forwarder services in the cluster.
func (r *ForwarderRuntime) ListUnits(ctx context.Context) ([]providers.ForwarderUnit, error) {
	var arns []string
	paginator := ecs.NewListServicesPaginator(r.ecs, &ecs.ListServicesInput{
		Cluster: aws.String(r.cluster),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list services: %w", err)
		}
		arns = append(arns, page.ServiceArns...)
	}

	var units []providers.ForwarderUnit
	// DescribeServices accepts at most 10 services per call.
	for start := 0; start < len(arns); start += 10 {
		end := min(start+10, len(arns))

		output, err := r.ecs.DescribeServices(ctx, &ecs.DescribeServicesInput{
			Cluster:  aws.String(r.cluster),
			Services: arns[start:end],
			Include:  []ecstypes.ServiceField{ecstypes.ServiceFieldTags},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to describe services: %w", err)
		}

		for _, svc := range output.Services {
			if aws.ToString(svc.Status) == "INACTIVE" {
				continue
			}
			unit, err := r.serviceToUnit(ctx, svc)
			if err != nil {
				return nil, err
			}
			units = append(units, unit)
		}
	}
	return units, nil
}

func (r *ForwarderRuntime) serviceToUnit(ctx context.Context, svc ecstypes.Service) (providers.ForwarderUnit, error) {
	unit := providers.ForwarderUnit{
		Name:     aws.ToString(svc.ServiceName),
		Replicas: int(svc.DesiredCount),
	}

	for _, tag := range svc.Tags {
		switch aws.ToString(tag.Key) {
		case tagSourceRegion:
			unit.Region = aws.ToString(tag.Value)
		case tagConfigID:
			unit.ConfigID = aws.ToString(tag.Value)
		}
	}

	// The image lives on the task definition.
	if svc.TaskDefinition != nil {
		output, err := r.ecs.DescribeTaskDefinition(ctx, &ecs.DescribeTaskDefinitionInput{
			TaskDefinition: svc.TaskDefinition,
		})
		if err != nil {
			return unit, fmt.Errorf("failed to describe task definition %s: %w",
				aws.ToString(svc.TaskDefinition), err)
		}
		if td := output.TaskDefinition; td != nil && len(td.ContainerDefinitions) > 0 {
			unit.Image = aws.ToString(td.ContainerDefinitions[0].Image)
		}
	}
	return unit, nil
}

// CreateUnit registers a task definition and creates the service.
func (r *ForwarderRuntime) CreateUnit(ctx context.Context, unit providers.ForwarderUnit) error {
	taskDefARN, err := r.registerTaskDefinition(ctx, unit)
	if err != nil {
		return err
	}

	_, err = r.ecs.CreateService(ctx, &ecs.CreateServiceInput{
		Cluster:        aws.String(r.cluster),
		ServiceName:    aws.String(unit.Name),
		TaskDefinition: aws.String(taskDefARN),
		DesiredCount:   aws.Int32(int32(unit.Replicas)),
		PropagateTags:  ecstypes.PropagateTagsService,
		Tags:           unitTags(unit),
	})
	if err != nil {
		return fmt.Errorf("failed to create service %s: %w", unit.Name, err)
	}
	return nil
}

// UpdateUnit rolls the service to a new task definition revision and
// desired count.
func (r *ForwarderRuntime) UpdateUnit(ctx context.Context, unit providers.ForwarderUnit) error {
	taskDefARN, err := r.registerTaskDefinition(ctx, unit)
	if err != nil {
		return err
	}

	_, err = r.ecs.UpdateService(ctx, &ecs.UpdateServiceInput{
		Cluster:        aws.String(r.cluster),
		Service:        aws.String(unit.Name),
		TaskDefinition: aws.String(taskDefARN),
		DesiredCount:   aws.Int32(int32(unit.Replicas)),
	})
	if err != nil {
		return fmt.Errorf("failed to update service %s: %w", unit.Name, err)
	}
	return nil
}

// DeleteUnit force-deletes the service without draining first; the
// topology no longer wants it.
func (r *ForwarderRuntime) DeleteUnit(ctx context.Context, name string) error {
	_, err := r.ecs.DeleteService(ctx, &ecs.DeleteServiceInput{
		Cluster: aws.String(r.cluster),
		Service: aws.String(name),
		Force:   aws.Bool(true),
	})
	if err != nil {
		return fmt.Errorf("failed to delete service %s: %w", name, err)
	}
	return nil
}

func (r *ForwarderRuntime) registerTaskDefinition(ctx context.Context, unit providers.ForwarderUnit) (string, error) {
	input := &ecs.RegisterTaskDefinitionInput{
		Family: aws.String(unit.Name),
		ContainerDefinitions: []ecstypes.ContainerDefinition{
			{
				Name:   aws.String("forwarder"),
				Image:  aws.String(unit.Image),
				Memory: aws.Int32(512),
				Cpu:    256,
				Environment: []ecstypes.KeyValuePair{
					{Name: aws.String("LFO_SOURCE_REGION"), Value: aws.String(unit.Region)},
					{Name: aws.String("LFO_CONFIG_ID"), Value: aws.String(unit.ConfigID)},
				},
			},
		},
	}
	if r.executionRoleARN != "" {
		input.ExecutionRoleArn = aws.String(r.executionRoleARN)
	}

	output, err := r.ecs.RegisterTaskDefinition(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to register task definition %s: %w", unit.Name, err)
	}
	return aws.ToString(output.TaskDefinition.TaskDefinitionArn), nil
}

func unitTags(unit providers.ForwarderUnit) []ecstypes.Tag {
	return []ecstypes.Tag{
		{Key: aws.String(tagSourceRegion), Value: aws.String(unit.Region)},
		{Key: aws.String(tagConfigID), Value: aws.String(unit.ConfigID)},
	}
}
