package attendanceRepository

const (
	queryGetClassByID = `
		SELECT
			id,
			name,
			code,
			faculty_id,
			enrolled_students,
			created_at
		FROM classes
		WHERE id = :id
	`

	queryLoadRoster = `
		SELECT
			student_id,
			vector
		FROM face_encodings
		WHERE student_id = ANY(:student_ids)
		ORDER BY student_id, created_at
	`

	queryCreateEncoding = `
		INSERT INTO face_encodings (
			id,
			student_id,
			vector,
			image_url,
			created_at
		) VALUES (
			:id,
			:student_id,
			:vector,
			:image_url,
			:created_at
		)
	`

	queryDeleteEncodingsByStudentID = `
		DELETE FROM face_encodings
		WHERE student_id = :student_id
	`

	queryCreateAttendanceRecord = `
		INSERT INTO attendance_records (
			id,
			class_id,
			date,
			students_present,
			method,
			marked_by,
			total_faces_detected,
			total_faces_recognized,
			created_at
		) VALUES (
			:id,
			:class_id,
			:date,
			:students_present,
			:method,
			:marked_by,
			:total_faces_detected,
			:total_faces_recognized,
			:created_at
		)
	`

	queryStudentExists = `
		SELECT EXISTS (
			SELECT 1
			FROM users
			WHERE student_id = :student_id
				AND role = 'student'
		)
	`

	queryUserIDsByStudentIDs = `
		SELECT
			id,
			student_id
		FROM users
		WHERE student_id = ANY(:student_ids)
			AND role = 'student'
	`
)
