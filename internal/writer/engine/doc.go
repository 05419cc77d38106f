// Package engine writes a project into a 3D engine project: a master level
// sequence, one shot sequence per shot with camera and character bindings,
// per-track subsequences, and asset folders per department.
//
// All editor access goes through HostBridge. FSBridge is the file-backed
// implementation used when the writer runs inside the editor host or tests.
package engine
