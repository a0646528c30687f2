package config

type WorkerKeyStruct struct {
	PersistUsageQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistUsageQueue: "persist_question_usage_queue",
}
