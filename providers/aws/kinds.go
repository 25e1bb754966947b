package aws

// Resource kind identifiers. The diagnostics capability table keys off
// these, so they are part of the cache schema and must stay stable.
const (
	KindEC2      = "ec2"
	KindRDS      = "rds"
	KindELB      = "elbv2"
	KindS3       = "s3"
	KindLambda   = "lambda"
	KindSQS      = "sqs"
	KindEKS      = "eks"
	KindDynamoDB = "dynamodb"
	KindRedshift = "redshift"
	KindMemoryDB = "memorydb"
	KindRoute53  = "route53_zone"
	KindECR      = "ecr"
)
