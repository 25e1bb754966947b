package diagnostics

// Capability describes what the platform can do with one resource kind.
type Capability struct {
	// Inventory kinds appear in discovery snapshots.
	Inventory bool
	// LogRouting kinds accept a log-routing configuration.
	LogRouting bool
}

// capabilities is keyed by resource kind. Kinds absent from the table
// are inventoried but never routed; they surface as unsupported in the
// diagnostic report rather than failing the batch.
var capabilities = map[string]Capability{
	"lambda":       {Inventory: true, LogRouting: true},
	"rds":          {Inventory: true, LogRouting: true},
	"eks":          {Inventory: true, LogRouting: true},
	"route53_zone": {Inventory: true, LogRouting: true},
	"ec2":          {Inventory: true},
	"elbv2":        {Inventory: true},
	"s3":           {Inventory: true},
	"sqs":          {Inventory: true},
	"dynamodb":     {Inventory: true},
	"redshift":     {Inventory: true},
	"memorydb":     {Inventory: true},
	"ecr":          {Inventory: true},
}

// SupportsLogRouting reports whether a routing configuration can be
// attached to the kind.
func SupportsLogRouting(kind string) bool {
	return capabilities[kind].LogRouting
}

// KnownKind reports whether the kind appears in the capability table at
// all.
func KnownKind(kind string) bool {
	_, ok := capabilities[kind]
	return ok
}
