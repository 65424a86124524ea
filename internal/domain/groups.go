package domain

// Feature group names, shared by the validation suites, the feature store,
// and the pipeline.
const (
	GroupWeather          = "weather_open_meteo"
	GroupPricesGeneration = "prices_generation"
	GroupPhysicalFlow     = "physical_flow"
	GroupModelData        = "model_data"
	GroupPredictions      = "predictions"
)
