// Package storage writes response bodies fetched by batch runs.
//
// Each target maps to <uuid>.body in the output directory, where the UUID
// is derived from the target URL. A re-run over the same directory can skip
// targets whose body is already present. Writes go through a temporary file
// and a rename, so a partial body never replaces a complete one.
//
//	manager, err := storage.NewManager("out")
//	if err != nil {
//	    return err
//	}
//	if !manager.IsSaved(target) {
//	    err = manager.Save(target, bytes.NewReader(resp.Body))
//	}
package storage
