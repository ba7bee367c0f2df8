// Package memory provides a trajectory memory engine for autonomous
// agents: a durable store of previously successful action sequences,
// indexed by the task text that produced them and queried by semantic
// similarity, so a new task can borrow the closest prior success as
// in-context guidance.
//
// Architecture:
//   - Store: durable append-only trajectory log (jsonlog for local use)
//   - Index: in-memory vector cache over the log, rebuilt at startup
//   - Embedder: text-to-vector conversion (mock, ONNX, or OpenAI)
//   - Engine: facade composing sanitize -> append -> extend on write,
//     embed -> search -> threshold on read
//
// Integration:
//   - Recall before planning: a qualifying match carries the prior
//     task, its sanitized trajectory, and an Inject() prompt block
//   - Memorize after a certified-successful run: the raw trace is
//     sanitized and persisted
//
// The engine is deliberately quiet about failure. Missing or corrupt
// storage is an empty store, a dead embedder selects the lexical
// fallback scorer, and a failed write survives in memory for the
// session. Nothing raises past the engine boundary; the host's run
// loop never breaks because its memory did.
package memory
