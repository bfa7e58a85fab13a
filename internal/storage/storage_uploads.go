package storage

// AppendUpload records one hosted file for userID.
func (s *Storage) AppendUpload(userID string, rec UploadRecord) error {
	user, err := s.userRecord(userID)
	if err != nil {
		return err
	}
	user.Uploads = append(user.Uploads, rec)
	return s.saveUserRecord(userID, user)
}

// Uploads returns userID's upload history, oldest first.
func (s *Storage) Uploads(userID string) ([]UploadRecord, error) {
	user, err := s.userRecord(userID)
	if err != nil {
		return nil, err
	}
	return user.Uploads, nil
}

// DeleteUpload drops the record whose hosted URL matches. Returns
// whether a record was removed; the hosted file itself is untouched.
func (s *Storage) DeleteUpload(userID, url string) (bool, error) {
	user, err := s.userRecord(userID)
	if err != nil {
		return false, err
	}

	kept := user.Uploads[:0]
	removed := false
	for _, rec := range user.Uploads {
		if rec.URL == url && !removed {
			removed = true
			continue
		}
		kept = append(kept, rec)
	}
	if !removed {
		return false, nil
	}
	user.Uploads = kept
	return true, s.saveUserRecord(userID, user)
}
