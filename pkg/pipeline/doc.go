// Package pipeline provides a sequential pipeline of named stages.
//
// Each stage receives the value produced by the previous stage and returns the value handed to the
// next one. Stages run strictly one after the other, in the order they were added, so the output of
// stage N is complete before stage N+1 starts.
//
// The pipeline stops on the first error returned by a stage. The error is wrapped with the name of
// the stage that failed, and the stages that follow are never invoked. The context given to Run is
// checked before every stage, which makes a run cancellable between stages; stages are expected to
// honour the same context while they block.
//
// Options implementing model.PipelineOption are notified when stages are added, before and after
// each stage runs and when the run finishes. The measure, drawer and tracing sub-packages use these
// hooks to record durations, export the stage graph and emit spans without the stages knowing
// about them.
package pipeline
