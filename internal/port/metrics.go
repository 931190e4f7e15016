package port

type OrderMetrics interface {
	ObserveOrder(result string)
}

type ChatMetrics interface {
	SessionOpened()
	SessionClosed()
	MessageAppended()
}
