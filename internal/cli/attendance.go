package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	attendanceGroup  string
	attendanceDate   string
	attendanceAbsent bool
	attendanceSince  int
)

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "Record and summarize attendance",
}

var attendanceRecordCmd = &cobra.Command{
	Use:   "record <student>...",
	Short: "Record attendance for one or more students",
	Long: `Record attendance for one or more students. Students are present
unless --absent is passed.

Examples:
  jasper attendance record alex sam jordan
  jasper attendance record sam --absent
  jasper attendance record alex --group wrestling --date 2026-08-28`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAttendanceRecord,
}

var attendanceSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show an attendance summary for a group",
	Args:  cobra.NoArgs,
	RunE:  runAttendanceSummary,
}

func init() {
	attendanceCmd.PersistentFlags().StringVarP(&attendanceGroup, "group", "g", "team", "roster group")
	attendanceRecordCmd.Flags().StringVar(&attendanceDate, "date", "", "session date (YYYY-MM-DD, default today)")
	attendanceRecordCmd.Flags().BoolVar(&attendanceAbsent, "absent", false, "mark the students absent")
	attendanceSummaryCmd.Flags().IntVar(&attendanceSince, "days", 30, "period to summarize")

	attendanceCmd.AddCommand(attendanceRecordCmd)
	attendanceCmd.AddCommand(attendanceSummaryCmd)
}

func runAttendanceRecord(cmd *cobra.Command, args []string) error {
	if remoteMode() {
		return fmt.Errorf("attendance recording only works against the local database")
	}

	date := time.Now()
	if attendanceDate != "" {
		parsed, err := time.Parse("2006-01-02", attendanceDate)
		if err != nil {
			return fmt.Errorf("parse date: %w", err)
		}
		date = parsed
	}

	ctx := cmd.Context()
	for _, student := range args {
		if err := dbClient.RecordAttendance(ctx, student, attendanceGroup, date, !attendanceAbsent); err != nil {
			return fmt.Errorf("record attendance for %s: %w", student, err)
		}
	}

	state := "present"
	if attendanceAbsent {
		state = "absent"
	}
	fmt.Printf("Recorded %d student(s) %s in %q on %s.\n",
		len(args), state, attendanceGroup, date.Format("2006-01-02"))
	return nil
}

func runAttendanceSummary(cmd *cobra.Command, args []string) error {
	if remoteMode() {
		return fmt.Errorf("attendance summary only works against the local database")
	}

	since := time.Now().AddDate(0, 0, -attendanceSince)
	summary, err := dbClient.AttendanceSummary(cmd.Context(), attendanceGroup, since)
	if err != nil {
		return fmt.Errorf("attendance summary: %w", err)
	}
	if summary == nil {
		fmt.Printf("No attendance records for %q in the last %d days.\n", attendanceGroup, attendanceSince)
		return nil
	}

	fmt.Printf("Group %q, last %d days:\n", summary.Group, attendanceSince)
	fmt.Printf("  sessions: %d  present: %d  absent: %d  rate: %.0f%%\n",
		summary.Sessions, summary.Present, summary.Absent, summary.Rate*100)
	if len(summary.TopAbsentees) > 0 {
		fmt.Println("  most absences:")
		for _, a := range summary.TopAbsentees {
			fmt.Printf("    %-16s %d\n", a.Student, a.Absences)
		}
	}
	return nil
}
