package mcpserver

// PipelineContract describes how files move through the agevault folders.
// LLM consumers should read it before suggesting where a user drops a file.
const PipelineContract = `# agevault Pipeline Contract

agevault watches four folders next to a single age key file (key.txt).
A file's folder is its state; nothing else is recorded.

## Folders

| Folder       | Meaning                                             |
|--------------|-----------------------------------------------------|
| Local        | Plaintext at rest. Decrypted files land here.       |
| 1. Encrypt   | Drop plaintext here to have it encrypted.           |
| 2. Vault     | Ciphertext at rest (` + "`" + `<name>.age` + "`" + `). Safe to sync or back up. |
| 3. Decrypt   | Drop ` + "`" + `.age` + "`" + ` files here to have them decrypted.           |

## Flow

1. A file placed in **1. Encrypt** is encrypted to the public key in key.txt.
   The ciphertext appears in **2. Vault** as ` + "`" + `<name>.age` + "`" + ` and the plaintext is removed.
2. A file placed in **3. Decrypt** is decrypted with the identity in key.txt.
   The plaintext appears in **Local** with the ` + "`" + `.age` + "`" + ` suffix removed and the
   ciphertext in the queue is removed.
3. A file that fails to encrypt or decrypt stays where it is and is retried
   on the next poll.

## Rules

1. Only files directly inside a queue folder are processed. Subfolders are ignored.
2. Existing files in Vault or Local are never overwritten.
3. Never move key.txt into a queue folder. Losing it makes every Vault file unreadable.
`
