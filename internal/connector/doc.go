// Package connector drives one reader to writer translation through a fixed
// sequence of states inside a temporary workspace.
//
// In direct mode the writer runs in-process. In host mode the project is
// serialized into the workspace and a target host command is launched; the
// host runs the hidden bridge command, which leaves a result document for the
// connector. A host that outlives its timeout has its process group killed.
//
// A failed run keeps its workspace and reports the failing state through
// *StageError.
package connector
