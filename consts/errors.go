package consts

import "errors"

var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrInvalidStoreKey = errors.New("invalid store key")

	ErrS3UploadFailed = errors.New("s3 upload failed")

	ErrMailboxNotSelected = errors.New("no mailbox selected")
)
