package envvar

const (
	// ScanbillEnv is the environment variable used to determine the environment
	ScanbillEnv = "SCANBILL_ENV"

	// ScanbillModelsPath is the environment variable used to override the models directory
	ScanbillModelsPath = "SCANBILL_MODELS_PATH"

	// ScanbillPython is the environment variable used to select the Python interpreter for exports
	ScanbillPython = "SCANBILL_PYTHON"

	// ScanbillORTLibrary is the environment variable used to locate the onnxruntime shared library
	ScanbillORTLibrary = "SCANBILL_ORT_LIBRARY"

	// ScanbillRedisAddr is the environment variable used to override the Redis address of the bill store
	ScanbillRedisAddr = "SCANBILL_REDIS_ADDR"
)
