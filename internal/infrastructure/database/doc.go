// Package database provides SQLite storage for the TV bridge.
//
// The bridge persists one thing: the pairing token of each TV it controls,
// so a restart does not require the user to enter the on-screen PIN again.
// Schema changes ship as embedded migrations (see the migrations package).
//
// Security Considerations:
//   - Database file permissions are set to 0600; tokens are session keys
//   - All queries use parameterised statements
//
// Usage:
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
package database
