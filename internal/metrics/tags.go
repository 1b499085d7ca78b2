package metrics

// Tag keys. Values are free-form except layer, which is one of
// types.LayerMemory or types.LayerDisk.
const (
	keyOperation = "operation"
	keyStatus    = "status"
	keyLayer     = "layer"
	keyBackend   = "backend"
	keyOrigin    = "origin"
	keyCircuit   = "circuit_state"
)

// Tag formats a DataDog tag as "key:value".
func Tag(key, value string) string { return key + ":" + value }

func OperationTag(op string) string       { return Tag(keyOperation, op) }
func StatusTag(status string) string      { return Tag(keyStatus, status) }
func LayerTag(layer string) string        { return Tag(keyLayer, layer) }
func BackendTag(backend string) string    { return Tag(keyBackend, backend) }
func OriginTag(origin string) string      { return Tag(keyOrigin, origin) }
func CircuitStateTag(state string) string { return Tag(keyCircuit, state) }
