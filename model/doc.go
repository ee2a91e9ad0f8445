// Package model defines the shared value types of the videoseg engine:
// frames, prompts, mask results and memory entries.
//
// Types in this package are plain data. They carry no behavior beyond small
// accessors and are safe to copy; ownership rules (who may mutate what) are
// documented on the owning components, not here.
package model
