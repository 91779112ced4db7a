package handler

type ListEventsParams struct {
	Limit      int64  `query:"limit"`
	Repository string `query:"repository"`
}

type AcceptedResponse struct {
	DeliveryID string `json:"delivery_id"`
	Event      string `json:"event"`
	Repository string `json:"repository"`
	Message    string `json:"message"`
}

type HealthResponse struct {
	Status      string `json:"status"`
	QueueLength int    `json:"queue_length"`
}

type ErrorResponse struct {
	Message string `json:"message"`
}
