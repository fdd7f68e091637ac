package config

const (
	EnvPrefix = "GIFTLANE"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)
