package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(vectorOpsTotal, vectorDocumentsStored) }

var (
	vectorOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bidforge_vector_ops_total",
			Help: "Vector store operations by kind and outcome.",
		},
		[]string{"op", "result"}, // op: add|search|delete, result: ok|error
	)

	vectorDocumentsStored = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "bidforge_vector_documents_stored",
			Help: "Documents written to the vector store.",
		},
	)
)

func IncVectorOp(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	vectorOpsTotal.WithLabelValues(norm(op), result).Inc()
}

func AddVectorDocuments(n int) { vectorDocumentsStored.Add(float64(n)) }
